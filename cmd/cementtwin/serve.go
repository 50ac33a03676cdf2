// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xrvnd/cement-ai/services/twin"
)

const defaultEnvFile = ".env"

type serveOptions struct {
	configPath string
	envFile    string
	llmBackend string
	port       int
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the digital twin HTTP service",
		Long: `Run the digital twin HTTP service.

Configuration is layered: built-in defaults, then --config (YAML), then
environment variables (optionally loaded from --env-file), then flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "dotenv file to load before reading the environment")
	cmd.Flags().StringVar(&opts.llmBackend, "llm-backend", "", "LLM backend: gemini, openai, anthropic, disabled")
	cmd.Flags().IntVar(&opts.port, "port", twin.DefaultPort, "HTTP listen port")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	if err := loadEnvFile(opts.envFile, cmd.Flags().Changed("env-file")); err != nil {
		return err
	}
	cfg, err := buildServeConfig(cmd.Flags(), opts)
	if err != nil {
		return err
	}

	svc, err := twin.New(cfg, nil)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("cementtwin starting",
		"version", twin.Version,
		"port", cfg.Port,
		"environment", cfg.Environment,
		"llm_backend", cfg.LLMBackend,
		"llm_key_set", cfg.LLMAPIKey != "")
	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	slog.Info("cementtwin stopped")
	return nil
}

// loadEnvFile loads path into the environment without overriding variables
// already set. A missing default file is ignored; a missing explicit one is
// an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		slog.Debug("Loaded env file", "path", path)
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load env file %s: %w", path, err)
}

// buildServeConfig applies flags on top of file and environment config.
func buildServeConfig(flags *pflag.FlagSet, opts *serveOptions) (twin.Config, error) {
	cfg, err := twin.LoadConfig(opts.configPath)
	if err != nil {
		return twin.Config{}, err
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("llm-backend") {
		cfg.SetLLMBackend(opts.llmBackend)
	}
	if err := cfg.Validate(); err != nil {
		return twin.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
