// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Command copyforge runs the product description optimizer: the HTTP API,
// database migrations and operator batch commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"copyforge/internal/config"
	"copyforge/internal/logger"
)

var (
	cfg *config.Config
	log *zap.Logger

	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "copyforge",
	Short:         "Generate and deploy storefront product descriptions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		l, err := logger.New(logger.Config{Level: c.LogLevel, Encoding: c.Encoding()})
		if err != nil {
			return err
		}
		cfg, log = c, l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "copyforge:", err)
		}
		os.Exit(1)
	}
}
