// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xrvnd/cement-ai/services/twin/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with sensor catalog files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Check a YAML sensor catalog; exits 1 when it is invalid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := printerFor(cmd)
			cat, err := catalog.Load(args[0])
			if err != nil {
				p.Error(err.Error())
				return fmt.Errorf("invalid catalog %s", args[0])
			}
			p.Success(fmt.Sprintf("%s: %d sensors", args[0], cat.Len()))
			return nil
		},
	})
	return cmd
}
