// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xrvnd/cement-ai/pkg/ux"
	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

func newSensorsCmd() *cobra.Command {
	var (
		catalogPath string
		poll        bool
	)
	cmd := &cobra.Command{
		Use:   "sensors",
		Short: "Print the sensor catalog, or one simulated snapshot with --poll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			p := printerFor(cmd)
			if poll {
				return printSnapshot(p, cat, sensors.NewStore(cat, nil).RefreshAll())
			}
			return printCatalog(p, cat)
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML sensor catalog (default: built-in table)")
	cmd.Flags().BoolVar(&poll, "poll", false, "refresh every sensor once and show values with statuses")
	return cmd
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func printCatalog(p *ux.Printer, cat *catalog.Catalog) error {
	p.Title("Sensor catalog")
	tbl := ux.NewTable("id", "name", "unit", "min", "max", "optimal", "critical")
	for _, d := range cat.All() {
		tbl.Add(d.ID, d.Name, d.Unit, num(d.Min), num(d.Max), num(d.Optimal), num(d.Critical))
	}
	if err := p.Table(tbl); err != nil {
		return err
	}
	p.Info(fmt.Sprintf("%d sensors", cat.Len()))
	return nil
}

func printSnapshot(p *ux.Printer, cat *catalog.Catalog, snap sensors.Snapshot) error {
	p.Title("Sensor snapshot")
	tbl := ux.NewTable("id", "value", "unit", "trend", "status", "range")
	tbl.StatusColumn = 4
	for _, d := range cat.All() {
		r, ok := snap[d.ID]
		if !ok {
			continue
		}
		tbl.Add(d.ID, num(r.Value), r.Unit, string(r.Trend), string(r.Status),
			p.RangeBar(r.Value, d.Min, d.Max, 12))
	}
	if err := p.Table(tbl); err != nil {
		return err
	}

	normal, warning, critical := snap.Counts()
	p.Info(fmt.Sprintf("overall %s: %d normal, %d warning, %d critical",
		snap.OverallStatus(), normal, warning, critical))
	if critical > 0 {
		p.Warning(fmt.Sprintf("%d sensor(s) past critical threshold", critical))
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
