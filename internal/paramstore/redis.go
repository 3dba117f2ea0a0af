// Package paramstore backs the credential resolver with a Redis key-value
// store. Parameters are plain string keys named like
// /bedrock-slackbot/{stage}/{MODEL}/SLACK_BOT_TOKEN, mirroring a hierarchical
// parameter store: GetByPath is a prefix scan plus a bulk read.
package paramstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds connection settings for the parameter store.
type Config struct {
	URL      string // redis://host:port
	Password string
	DB       int
	Logger   *slog.Logger
}

// RedisStore implements domain.ParameterSource over a Redis instance.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// New connects to the parameter store and verifies the connection.
func New(cfg Config) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("paramstore: URL not configured")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("paramstore: invalid URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("paramstore: connection failed: %w", err)
	}

	return &RedisStore{client: client, logger: cfg.Logger}, nil
}

// GetByPath returns every parameter stored under the given path prefix.
func (s *RedisStore) GetByPath(ctx context.Context, path string) (map[string]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, path+"*", 0).Iterator()
	for iter.Next(ctx) {
		names = append(names, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("paramstore: scan %s: %w", path, err)
	}

	params := make(map[string]string, len(names))
	if len(names) == 0 {
		return params, nil
	}

	values, err := s.client.MGet(ctx, names...).Result()
	if err != nil {
		return nil, fmt.Errorf("paramstore: read %s: %w", path, err)
	}
	for i, v := range values {
		if v == nil {
			// Key expired between scan and read; treat as absent.
			continue
		}
		str, ok := v.(string)
		if !ok {
			s.logger.Warn("parameter has non-string value", "name", names[i])
			continue
		}
		params[names[i]] = str
	}
	return params, nil
}

// Put stores one parameter. Used by provisioning tooling and tests.
func (s *RedisStore) Put(ctx context.Context, name, value string) error {
	if err := s.client.Set(ctx, name, value, 0).Err(); err != nil {
		return fmt.Errorf("paramstore: write %s: %w", name, err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
