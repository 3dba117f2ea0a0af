package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for bedrockbot.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Ingress    IngressConfig    `json:"ingress"`
	Worker     WorkerConfig     `json:"worker"`
	ParamStore ParamStoreConfig `json:"paramStore"`
	Bedrock    BedrockConfig    `json:"bedrock"`
	Audit      AuditConfig      `json:"audit"`
}

type GeneralConfig struct {
	Stage    string `json:"stage"`
	Region   string `json:"region"`
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// IngressConfig configures the Slack event receiver.
type IngressConfig struct {
	Host             string `json:"host"`
	Port             int    `json:"port"`
	VerifySignatures bool   `json:"verifySignatures"`
}

// WorkerConfig configures the invocation worker. Target is the URL the
// ingress side forwards payloads to; leaving it empty makes every dispatch
// fail as misconfigured.
type WorkerConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Target string `json:"target"`
}

// ParamStoreConfig configures the credential parameter store connection.
type ParamStoreConfig struct {
	URL      string `json:"url"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	BasePath string `json:"basePath"`
}

// BedrockConfig configures the model backend client. APIBase overrides the
// regional endpoint derived from general.region.
type BedrockConfig struct {
	APIBase              string `json:"apiBase,omitempty"`
	APIKey               string `json:"apiKey,omitempty"`
	OpusInferenceProfile string `json:"opusInferenceProfile,omitempty"`
}

// AuditConfig configures the worker's invocation log.
type AuditConfig struct {
	Enabled       bool   `json:"enabled"`
	DBPath        string `json:"dbPath"`
	RetentionDays int    `json:"retentionDays"`
}

// DefaultConfigDir returns the default config directory (~/.bedrockbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bedrockbot"
	}
	return filepath.Join(home, ".bedrockbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.Stage == "" {
		errs = append(errs, "general.stage must be set")
	}
	if cfg.General.Region == "" {
		errs = append(errs, "general.region must be set")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Ingress.Port < 0 || cfg.Ingress.Port > 65535 {
		errs = append(errs, "ingress.port must be between 0 and 65535")
	}
	if cfg.Worker.Port < 0 || cfg.Worker.Port > 65535 {
		errs = append(errs, "worker.port must be between 0 and 65535")
	}

	if cfg.ParamStore.URL == "" {
		errs = append(errs, "paramStore.url must be set")
	}
	if !strings.HasPrefix(cfg.ParamStore.BasePath, "/") {
		errs = append(errs, "paramStore.basePath must start with /")
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath must be set when audit is enabled")
	}
	if cfg.Audit.RetentionDays < 1 {
		errs = append(errs, "audit.retentionDays must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
