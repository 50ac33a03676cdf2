// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/xrvnd/cement-ai/pkg/logging"
	"github.com/xrvnd/cement-ai/pkg/ux"
)

// app carries state shared by every subcommand.
type app struct {
	logLevel string
	logDir   string
	logJSON  bool

	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "cementtwin",
		Short:         "Cement plant digital twin",
		Long:          "cementtwin serves the plant digital twin API and inspects its sensor catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.closeLogger()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&a.logDir, "log-dir", "", "also write JSON logs to a daily file in this directory")
	flags.BoolVar(&a.logJSON, "log-json", true, "write JSON logs to stderr")

	root.AddCommand(
		newServeCmd(a),
		newSensorsCmd(),
		newCatalogCmd(),
		newVersionCmd(),
	)
	return root
}

func (a *app) initLogger(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  a.logDir,
		Service: "cementtwin",
		JSON:    a.logJSON,
		Writer:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(a.logger.Slog())
	return nil
}

func (a *app) closeLogger() {
	if a.logger == nil {
		return
	}
	if err := a.logger.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "close logger:", err)
	}
	a.logger = nil
}

// printerFor styles output only when the command writes to a terminal.
func printerFor(cmd *cobra.Command) *ux.Printer {
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok {
		return ux.NewPrinter(f, ux.DetectMode(f))
	}
	return ux.NewPrinter(out, ux.ModePlain)
}
