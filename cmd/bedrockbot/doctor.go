package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"bedrockbot/internal/config"
	"bedrockbot/internal/creds"
	"bedrockbot/internal/domain"
	"bedrockbot/internal/paramstore"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your bedrockbot installation",
		Long: `Verifies that bedrockbot's configuration, parameter store, credentials,
and audit database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("bedrockbot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				failed++
				fmt.Printf("\nRun 'bedrockbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			if cfg == nil {
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return nil
			}

			// 3. Bedrock access configured
			if cfg.Bedrock.APIKey == "" {
				printWarn("Bedrock", "no API key configured")
				warned++
			} else {
				printPass("Bedrock", "API key configured")
				passed++
			}
			if cfg.Bedrock.OpusInferenceProfile == "" {
				printWarn("Opus profile", "not configured; claude_opus invocations will fail")
				warned++
			} else {
				printPass("Opus profile", cfg.Bedrock.OpusInferenceProfile)
				passed++
			}

			// 4. Parameter store reachable and per-model credentials present
			store, err := paramstore.New(paramstore.Config{
				URL:      cfg.ParamStore.URL,
				Password: cfg.ParamStore.Password,
				DB:       cfg.ParamStore.DB,
				Logger:   logger,
			})
			if err != nil {
				printFail("Parameter store", err.Error())
				failed++
			} else {
				defer store.Close()
				printPass("Parameter store", cfg.ParamStore.URL)
				passed++

				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()

				resolver := creds.NewResolver(store, cfg.ParamStore.BasePath, logger)
				all, err := resolver.ResolveAll(ctx, cfg.General.Stage)
				if err != nil {
					printFail("Credentials", err.Error())
					failed++
				} else {
					for _, model := range domain.KnownModels() {
						c, ok := all[model]
						switch {
						case !ok:
							printWarn("Credentials: "+string(model), "bot token missing")
							warned++
						case c.SigningSecret == "" && cfg.Ingress.VerifySignatures:
							printWarn("Credentials: "+string(model), "signing secret missing; ingress will reject events")
							warned++
						default:
							printPass("Credentials: "+string(model), "configured")
							passed++
						}
					}
				}
			}

			// 5. Audit database writable
			if cfg.Audit.Enabled {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Audit database", err.Error())
					failed++
				} else {
					printPass("Audit database", cfg.Audit.DBPath)
					passed++
				}
			}

			// 6. Check ports
			for _, p := range []struct {
				name string
				port int
			}{
				{"Ingress port", cfg.Ingress.Port},
				{"Worker port", cfg.Worker.Port},
			} {
				if err := checkPort(p.port); err != nil {
					printWarn(p.name, fmt.Sprintf("port %d may be in use: %v", p.port, err))
					warned++
				} else {
					printPass(p.name, fmt.Sprintf(":%d available", p.port))
					passed++
				}
			}

			// 7. Worker target configured
			if cfg.Worker.Target == "" {
				printFail("Worker target", "not configured; every dispatch will fail")
				failed++
			} else {
				printPass("Worker target", cfg.Worker.Target)
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running bedrockbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nbedrockbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! bedrockbot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-28s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-28s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-28s %s\n", check, detail)
}
