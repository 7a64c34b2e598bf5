package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/allocai/backend/internal/app"
	"github.com/allocai/backend/internal/config"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "allocai",
	Short: "AllocAI resource allocation backend",
	Long: `AllocAI manages employees, projects and their allocations and produces
AI-assisted insights about over-commitment and under-utilisation.

Configuration is read from .env and the environment (DATABASE_URL, REDIS_URL,
JWT_SECRET, OPENAI_API_KEY, ...). Without DATABASE_URL the server keeps its data
in memory; without REDIS_URL jobs and revoked tokens are kept in memory too.`,
	SilenceUsage: true,
}

// @title AllocAI API
// @version 1.0
// @description Employees, projects, allocations and AI resource insights
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(webhooksCmd())
	rootCmd.AddCommand(conflictsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	return cfg, app.NewLogger(cfg), nil
}

// withApp builds the wired application for one command and closes it
// afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
