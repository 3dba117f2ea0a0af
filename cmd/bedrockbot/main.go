package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bedrockbot/internal/audit"
	"bedrockbot/internal/bedrock"
	"bedrockbot/internal/config"
	"bedrockbot/internal/creds"
	"bedrockbot/internal/dispatch"
	"bedrockbot/internal/domain"
	"bedrockbot/internal/ingress"
	"bedrockbot/internal/invoker"
	"bedrockbot/internal/notify"
	"bedrockbot/internal/paramstore"
	"bedrockbot/internal/worker"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "bedrockbot",
		Short: "bedrockbot: Slack relay for Bedrock models",
		Long:  "bedrockbot forwards Slack app mentions to Bedrock models and posts the results back.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.bedrockbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(ingressCmd())
	root.AddCommand(workerCmd())
	root.AddCommand(configCmd())
	root.AddCommand(credsCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(doctorCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := setupLogger(cfg.General.LogLevel, cfg.General.LogFile); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupLogger(level, logFile string) error {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
	}

	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	return nil
}

// newResolver connects to the parameter store and wraps it in a credential
// resolver. The caller owns the returned store and must Close it.
func newResolver(cfg *config.Config) (*paramstore.RedisStore, domain.CredentialResolver, error) {
	store, err := paramstore.New(paramstore.Config{
		URL:      cfg.ParamStore.URL,
		Password: cfg.ParamStore.Password,
		DB:       cfg.ParamStore.DB,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("parameter store: %w", err)
	}
	return store, creds.NewResolver(store, cfg.ParamStore.BasePath, logger), nil
}

func ingressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingress",
		Short: "Start the Slack event receiver",
		Long:  "Receives Slack Events API callbacks, verifies signatures, and forwards app mentions to the worker. Press Ctrl+C to stop.",
		RunE:  runIngress,
	}
}

func runIngress(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	router := ingress.NewRouter(cfg.Worker.Target, dispatch.NewHTTP(logger), logger)

	srv := ingress.NewServer(ingress.ServerConfig{
		Host:             cfg.Ingress.Host,
		Port:             cfg.Ingress.Port,
		Stage:            cfg.General.Stage,
		VerifySignatures: cfg.Ingress.VerifySignatures,
		Router:           router,
		Resolver:         resolver,
		Notifiers:        notify.Factory(logger),
		Logger:           logger,
	})

	return srv.Start(ctx)
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the model invocation worker",
		Long:  "Accepts dispatched payloads, invokes the requested Bedrock model, and posts responses to Slack. Press Ctrl+C to stop.",
		RunE:  runWorker,
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	backend := bedrock.New(bedrock.Config{
		Region:  cfg.General.Region,
		APIBase: cfg.Bedrock.APIBase,
		APIKey:  cfg.Bedrock.APIKey,
		Logger:  logger,
	})

	var auditStore *audit.Store
	if cfg.Audit.Enabled {
		auditStore, err = audit.NewStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return fmt.Errorf("audit store: %w", err)
		}
		defer auditStore.Close()

		retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
		if n, err := auditStore.Prune(ctx, retention); err != nil {
			logger.Warn("audit prune failed", "err", err)
		} else if n > 0 {
			logger.Info("audit records pruned", "count", n)
		}
	}

	handler := worker.NewHandler(worker.HandlerConfig{
		Stage:     cfg.General.Stage,
		Resolver:  resolver,
		Notifiers: notify.Factory(logger),
		Registry:  invoker.NewRegistry(backend, cfg.Bedrock.OpusInferenceProfile, logger),
		Audit:     auditStore,
		Logger:    logger,
	})

	srv := worker.NewServer(worker.ServerConfig{
		Host:    cfg.Worker.Host,
		Port:    cfg.Worker.Port,
		Handler: handler,
		Logger:  logger,
	})

	return srv.Start(ctx)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. general.stage)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. worker.target http://host:8081/invoke)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			sanitized := config.Sanitize(cfg)
			data, _ := json.MarshalIndent(sanitized, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func credsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "creds",
		Short: "Manage per-model Slack credentials in the parameter store",
	}

	var signingSecret string
	setCmd := &cobra.Command{
		Use:   "set [model] [bot-token]",
		Short: "Store a model's Slack bot token (and optionally its signing secret)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := domain.ModelID(args[0])
			if !model.Known() {
				return fmt.Errorf("unknown model: %s (known: %v)", args[0], domain.KnownModels())
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, _, err := newResolver(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			resolver := creds.NewResolver(store, cfg.ParamStore.BasePath, logger)
			tokenName := resolver.ParameterName(cfg.General.Stage, model, false)
			if err := store.Put(ctx, tokenName, args[1]); err != nil {
				return fmt.Errorf("store bot token: %w", err)
			}
			if signingSecret != "" {
				secretName := resolver.ParameterName(cfg.General.Stage, model, true)
				if err := store.Put(ctx, secretName, signingSecret); err != nil {
					return fmt.Errorf("store signing secret: %w", err)
				}
			}
			logger.Info("credentials stored", "model", model, "stage", cfg.General.Stage)
			return nil
		},
	}
	setCmd.Flags().StringVar(&signingSecret, "signing-secret", "", "signing secret for the model's Slack app")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show which models have credentials configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, resolver, err := newResolver(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			all, err := resolver.ResolveAll(ctx, cfg.General.Stage)
			if err != nil {
				return err
			}
			for _, model := range domain.KnownModels() {
				c, ok := all[model]
				switch {
				case !ok:
					fmt.Printf("  %-20s missing\n", model)
				case c.SigningSecret == "":
					fmt.Printf("  %-20s token only (no signing secret)\n", model)
				default:
					fmt.Printf("  %-20s configured\n", model)
				}
			}
			return nil
		},
	})

	return cmd
}

func auditCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent model invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit is disabled in config")
			}
			store, err := audit.NewStore(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			records, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				line := fmt.Sprintf("  %s  %-20s %-10s %s", rec.CreatedAt.Format(time.RFC3339), rec.Model, rec.Outcome, rec.ChannelID)
				if rec.Detail != "" {
					line += "  " + rec.Detail
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of records to show")
	return cmd
}
