// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Command sqlite3xd is the router's process entrypoint: it loads
// configuration, opens the coordinator database, attaches shards, and
// exposes maintenance/inspection subcommands.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath string
	logLevel   string
	logPath    string
)

func main() {
	root := &cobra.Command{
		Use:   "sqlite3xd",
		Short: "Partitioned SQLite router",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging(logLevel, logPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logPath, "log-path", "", "Optional log file path; rotated with lumberjack")

	root.AddCommand(
		runInitCommand(),
		runAttachCommand(),
		runMaintainCommand(),
		runVerifyIndicesCommand(),
		runServeCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level, path string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	if path == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		return nil
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     28,
		Compress:   true,
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
	return nil
}
