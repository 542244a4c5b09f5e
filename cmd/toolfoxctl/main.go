package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ManuelReschke/ToolFox/internal/pkg/bootstrap"
	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/config"
	"github.com/ManuelReschke/ToolFox/internal/pkg/database"
	"github.com/ManuelReschke/ToolFox/internal/pkg/env"
)

var rootCmd = &cobra.Command{
	Use:   "toolfoxctl",
	Short: "Operate the ToolFox billing and advertising core",
	Long: `toolfoxctl runs the expiry sweeps, reconciles user quotas and manages
Stripe price mappings against the configured database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(sweepCmd, reconcileCmd, plansCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect loads the environment and wires the services against MySQL and Redis.
func connect(ctx context.Context) (*bootstrap.Services, error) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	database.SetupDatabase()
	cache.SetupCache()
	svc, err := bootstrap.New(ctx, bootstrap.FromDB(cfg, database.GetDB(), cache.GetClient()))
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	return svc, nil
}
