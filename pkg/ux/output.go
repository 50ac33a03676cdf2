// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package ux renders cementtwin CLI output.
//
// A Printer writes either styled output (lipgloss, for terminals) or plain
// tab-separated text (pipes, files, NO_COLOR). Styles are bound to the
// Printer's writer, so colour support is detected per destination.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// Kiln palette
var (
	ColorFlame     = lipgloss.Color("#F28C28")
	ColorClinker   = lipgloss.Color("#C0562B")
	ColorLimestone = lipgloss.Color("#D9D4C7")
	ColorSlate     = lipgloss.Color("#5B6770")
	ColorKilnShell = lipgloss.Color("#3A3F44")

	ColorSuccess = lipgloss.Color("#4CAF50")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Mode selects between styled and plain output.
type Mode int

const (
	ModePlain Mode = iota
	ModeRich
)

// DetectMode returns ModeRich when f is a terminal and NO_COLOR is unset.
func DetectMode(f *os.File) Mode {
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeRich
	}
	return ModePlain
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

type styles struct {
	title   lipgloss.Style
	muted   lipgloss.Style
	bold    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
	border  lipgloss.Style
	header  lipgloss.Style
	cell    lipgloss.Style
	box     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorFlame),
		muted:   r.NewStyle().Foreground(ColorSlate),
		bold:    r.NewStyle().Bold(true),
		success: r.NewStyle().Foreground(ColorSuccess),
		warning: r.NewStyle().Foreground(ColorWarning),
		error:   r.NewStyle().Foreground(ColorError),
		border:  r.NewStyle().Foreground(ColorKilnShell),
		header:  r.NewStyle().Bold(true).Foreground(ColorLimestone).Padding(0, 1),
		cell:    r.NewStyle().Padding(0, 1),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorClinker).
			Padding(0, 1),
	}
}

// Printer writes CLI output to one destination.
//
// # Thread Safety
//
// Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	mode   Mode
	styles styles
}

// NewPrinter binds a Printer to w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	return &Printer{w: w, mode: mode, styles: newStyles(lipgloss.NewRenderer(w))}
}

// Mode reports the output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Title prints a heading. Plain mode omits it.
func (p *Printer) Title(text string) {
	if p.mode == ModePlain {
		return
	}
	fmt.Fprintln(p.w, p.styles.title.Render(text))
}

// Success prints an OK line.
func (p *Printer) Success(text string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.success.Render(string(IconSuccess)), text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.warning.Render(string(IconWarning)), p.styles.warning.Render(text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.error.Render(string(IconError)), p.styles.error.Render(text))
}

// Info prints a bulleted line, or the bare text in plain mode.
func (p *Printer) Info(text string) {
	if p.mode == ModePlain {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.styles.muted.Render(string(IconBullet)), text)
}

// Box prints a titled, bordered block. Plain mode prints "title: content".
func (p *Printer) Box(title, content string) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, p.styles.box.Width(60).Render(p.styles.title.Render(title)+"\n"+content))
}

// =============================================================================
// Tables
// =============================================================================

// Table holds rows for a Printer. StatusColumn, when >= 0, names the column
// whose "normal"/"warning"/"critical" cells are coloured.
type Table struct {
	Headers      []string
	Rows         [][]string
	StatusColumn int
}

// NewTable starts a table with no status column.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers, StatusColumn: -1}
}

// Add appends a row.
func (t *Table) Add(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Table renders t. Plain mode writes tab-aligned columns with an upper-case
// header and no borders.
func (p *Printer) Table(t *Table) error {
	if p.mode == ModePlain {
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		upper := make([]string, len(t.Headers))
		for i, h := range t.Headers {
			upper[i] = strings.ToUpper(h)
		}
		fmt.Fprintln(tw, strings.Join(upper, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.styles.border).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.header
			}
			if col == t.StatusColumn && row >= 0 && row < len(t.Rows) && col < len(t.Rows[row]) {
				return p.statusStyle(t.Rows[row][col]).Padding(0, 1)
			}
			return p.styles.cell
		})
	_, err := fmt.Fprintln(p.w, tbl.Render())
	return err
}

func (p *Printer) statusStyle(status string) lipgloss.Style {
	switch status {
	case "critical":
		return p.styles.error
	case "warning":
		return p.styles.warning
	case "normal":
		return p.styles.success
	default:
		return p.styles.cell
	}
}

// RangeBar shows where value sits between lo and hi. Plain mode returns a
// percentage.
func (p *Printer) RangeBar(value, lo, hi float64, width int) string {
	pct := 0.0
	if hi > lo {
		pct = (value - lo) / (hi - lo)
	}
	pct = min(max(pct, 0), 1)
	if p.mode == ModePlain {
		return fmt.Sprintf("%.0f%%", pct*100)
	}
	filled := int(pct * float64(width))
	return p.styles.success.Render(strings.Repeat("█", filled)) +
		p.styles.muted.Render(strings.Repeat("░", width-filled))
}
