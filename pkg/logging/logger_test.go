// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"Warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrUnknownLevel) {
			t.Errorf("ParseLevel(%q) error = %v, want ErrUnknownLevel", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevel_SlogRoundTrip(t *testing.T) {
	for _, l := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		if got := fromSlogLevel(l.toSlogLevel()); got != l {
			t.Errorf("fromSlogLevel(%v.toSlogLevel()) = %v", l, got)
		}
	}
	if got := fromSlogLevel(slog.LevelError + 4); got != LevelError {
		t.Errorf("fromSlogLevel(above error) = %v, want ERROR", got)
	}
}

// =============================================================================
// Console Output Tests
// =============================================================================

func TestNew_TextToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "cementtwin", Writer: &buf})
	defer logger.Close()

	logger.Info("sensor refreshed", "sensor_id", "kiln-temp")

	out := buf.String()
	for _, want := range []string{"sensor refreshed", "sensor_id=kiln-temp", "service=cementtwin", "level=INFO"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "twin", JSON: true, Writer: &buf})
	defer logger.Close()

	logger.Warn("alert raised", "value", 1610.5)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if rec["msg"] != "alert raised" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v", rec["level"])
	}
	if rec["service"] != "twin" {
		t.Errorf("service = %v", rec["service"])
	}
	if rec["value"] != 1610.5 {
		t.Errorf("value = %v", rec["value"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   Level
		visible []string
		hidden  []string
	}{
		{LevelDebug, []string{"d-msg", "i-msg", "w-msg", "e-msg"}, nil},
		{LevelInfo, []string{"i-msg", "w-msg", "e-msg"}, []string{"d-msg"}},
		{LevelWarn, []string{"w-msg", "e-msg"}, []string{"d-msg", "i-msg"}},
		{LevelError, []string{"e-msg"}, []string{"d-msg", "i-msg", "w-msg"}},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := New(Config{Level: tt.level, Writer: &buf})
		logger.Debug("d-msg")
		logger.Info("i-msg")
		logger.Warn("w-msg")
		logger.Error("e-msg")
		out := buf.String()
		for _, m := range tt.visible {
			if !strings.Contains(out, m) {
				t.Errorf("level %v: %q missing", tt.level, m)
			}
		}
		for _, m := range tt.hidden {
			if strings.Contains(out, m) {
				t.Errorf("level %v: %q should be filtered", tt.level, m)
			}
		}
		logger.Close()
	}
}

func TestNew_Quiet(t *testing.T) {
	for _, service := range []string{"", "twin"} {
		var buf bytes.Buffer
		logger := New(Config{Level: LevelDebug, Quiet: true, Service: service, Writer: &buf})

		logger.Error("should not appear", "sensor", "kiln_temp")
		logger.With("plant", "karnataka").Warn("nor this")
		if buf.Len() != 0 {
			t.Errorf("service %q: quiet logger wrote %q", service, buf.String())
		}
		if logger.Slog().Enabled(context.Background(), slog.LevelError) {
			t.Errorf("service %q: quiet logger reports Error enabled", service)
		}
		logger.Close()
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.Slog() == nil {
		t.Fatal("Default().Slog() is nil")
	}
	if !logger.Slog().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Default should enable info")
	}
	if logger.Slog().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Default should not enable debug")
	}
}

// =============================================================================
// File Output Tests
// =============================================================================

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "twin", Quiet: true})
	logger.Info("written to file", "plant", "karnataka")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	name := filepath.Join(dir, "twin_"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &rec); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if rec["msg"] != "written to file" || rec["plant"] != "karnataka" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_WithLogDir_DefaultName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("x")
	logger.Close()

	matches, _ := filepath.Glob(filepath.Join(dir, "cementtwin_*.log"))
	if len(matches) != 1 {
		t.Errorf("expected one cementtwin_*.log, got %v", matches)
	}
}

func TestNew_WithLogDir_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Writer: &buf})
	defer logger.Close()

	if !strings.Contains(buf.String(), "file output disabled") {
		t.Errorf("expected a notice on the console, got %q", buf.String())
	}
	logger.Info("still logs")
	if !strings.Contains(buf.String(), "still logs") {
		t.Error("console output should survive a bad LogDir")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/logs", filepath.Join(home, "logs")},
		{"/var/log/twin", "/var/log/twin"},
		{"relative", "relative"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

func TestExporter_ReceivesEntries(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Service: "twin", Quiet: true, Exporter: exp})

	logger.Debug("filtered")
	logger.With("component", "recorder").Warn("write failed", "points", 12)

	entries := exp.Entries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "write failed" || e.Level != LevelWarn || e.Service != "twin" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attrs["component"] != "recorder" {
		t.Errorf("component = %v", e.Attrs["component"])
	}
	if e.Attrs["points"] != int64(12) {
		t.Errorf("points = %v (%T)", e.Attrs["points"], e.Attrs["points"])
	}
	if _, ok := e.Attrs["service"]; ok {
		t.Error("service should be lifted out of Attrs")
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestExporter_SlogDefault(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exp})
	defer logger.Close()

	prev := slog.Default()
	slog.SetDefault(logger.Slog())
	defer slog.SetDefault(prev)

	slog.Info("via default", "sensor", "mill-power")

	entries := exp.Entries()
	if len(entries) != 1 || entries[0].Message != "via default" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestExporter_Groups(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exp})
	defer logger.Close()

	logger.Slog().WithGroup("llm").Info("call", "backend", "gemini",
		slog.Group("usage", "prompt", 10))

	attrs := exp.Entries()[0].Attrs
	if attrs["llm.backend"] != "gemini" {
		t.Errorf("llm.backend = %v", attrs["llm.backend"])
	}
	if attrs["llm.usage.prompt"] != int64(10) {
		t.Errorf("llm.usage.prompt = %v", attrs["llm.usage.prompt"])
	}
}

func TestExporter_WithConsole(t *testing.T) {
	var buf bytes.Buffer
	exp := NewBufferedExporter()
	logger := New(Config{Writer: &buf, Exporter: exp})
	defer logger.Close()

	logger.Info("both")
	if !strings.Contains(buf.String(), "both") {
		t.Error("console missed the record")
	}
	if len(exp.Entries()) != 1 {
		t.Error("exporter missed the record")
	}
}

func TestBufferedExporter_EntriesReturnsCopy(t *testing.T) {
	exp := NewBufferedExporter()
	_ = exp.Export(context.Background(), LogEntry{Message: "a"})

	got := exp.Entries()
	got[0].Message = "changed"
	if exp.Entries()[0].Message != "a" {
		t.Error("Entries should return a copy")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

type failingExporter struct {
	BufferedExporter
	flushErr error
	closeErr error
}

func (f *failingExporter) Flush(context.Context) error { return f.flushErr }
func (f *failingExporter) Close() error                { return f.closeErr }

func TestLogger_Close(t *testing.T) {
	t.Run("nothing to release", func(t *testing.T) {
		if err := New(Config{Quiet: true}).Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})

	t.Run("flushes exporter", func(t *testing.T) {
		exp := NewBufferedExporter()
		logger := New(Config{Quiet: true, Exporter: exp})
		if err := logger.Close(); err != nil {
			t.Fatalf("Close() = %v", err)
		}
		if exp.Flushes() != 1 {
			t.Errorf("Flushes() = %d, want 1", exp.Flushes())
		}
	})

	t.Run("reports flush error first", func(t *testing.T) {
		flushErr := errors.New("flush boom")
		exp := &failingExporter{flushErr: flushErr, closeErr: errors.New("close boom")}
		err := New(Config{Quiet: true, Exporter: exp}).Close()
		if !errors.Is(err, flushErr) {
			t.Errorf("Close() = %v, want flush error", err)
		}
	})

	t.Run("second close is a no-op", func(t *testing.T) {
		logger := New(Config{Quiet: true, LogDir: t.TempDir(), Exporter: NewBufferedExporter()})
		if err := logger.Close(); err != nil {
			t.Fatal(err)
		}
		if err := logger.Close(); err != nil {
			t.Errorf("second Close() = %v", err)
		}
	})
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func TestLogger_ConcurrentUse(t *testing.T) {
	exp := NewBufferedExporter()
	logger := New(Config{Quiet: true, LogDir: t.TempDir(), Exporter: exp})
	defer logger.Close()

	const goroutines, perG = 8, 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			child := logger.With("worker", g)
			for i := 0; i < perG; i++ {
				child.Info("tick", "i", i)
			}
		}(g)
	}
	wg.Wait()

	if got := len(exp.Entries()); got != goroutines*perG {
		t.Errorf("exported %d entries, want %d", got, goroutines*perG)
	}
}
