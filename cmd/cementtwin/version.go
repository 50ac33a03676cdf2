// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/xrvnd/cement-ai/services/twin"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printerFor(cmd).Box("cementtwin", fmt.Sprintf("%s (%s, %s/%s)",
				twin.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH))
		},
	}
}
