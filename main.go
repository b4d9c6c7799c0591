package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oneverse/internal/app"
	"oneverse/internal/config"
	"oneverse/internal/db"
	"oneverse/internal/gateway"
	"oneverse/internal/lifecycle"
	"oneverse/internal/observability"
	"oneverse/internal/ui"
)

var version = "0.1.0"

func main() {
	var (
		dbPath  string
		logFile string
		backend string
	)

	rootCmd := &cobra.Command{
		Use:     "oneverse",
		Short:   "OneVerse - chat, write, code, imagine, plan and take notes from the terminal",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides []config.Override
			if cmd.Flags().Changed("db") {
				overrides = append(overrides, func(c *config.Config) { c.DBPath = dbPath })
			}
			if cmd.Flags().Changed("log-file") {
				overrides = append(overrides, func(c *config.Config) { c.LogFile = logFile })
			}
			if cmd.Flags().Changed("backend") {
				overrides = append(overrides, func(c *config.Config) { c.Backend = config.Backend(backend) })
			}
			return run(overrides...)
		},
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the database file")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "path to the log file")
	rootCmd.Flags().StringVar(&backend, "backend", "", "model backend (gemini or openai)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(overrides ...config.Override) error {
	cfg, err := config.Load(overrides...)
	if err != nil {
		return err
	}

	logger, logCloser, err := observability.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	factory := gateway.GeminiFactory()
	if cfg.Backend == config.BackendOpenAI {
		factory = gateway.OpenAIFactory(cfg.BaseURL)
	}

	notifier := &ui.Notifier{}
	a := app.New(cfg, conn, logger, factory, lifecycle.OnUpdate(notifier.Forward))
	logger.Info("starting", "version", version, "backend", cfg.Backend, "db", cfg.DBPath)

	if _, err := ui.NewProgram(a, notifier).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
