// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package handlers implements the twin HTTP API as gin handler closures.
//
// # Description
//
// Every constructor takes its dependencies explicitly and returns a
// gin.HandlerFunc, so routes.SetupRoutes is the only place the object graph
// meets the router. Failures answer with a JSON body {"detail": "..."} and a
// non-2xx status; the span of the request records the error.
//
// # Thread Safety
//
// Handlers hold no state of their own. Shared state lives in the injected
// stores, which are safe for concurrent use.
package handlers

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

var tracer = otel.Tracer("cementtwin.handlers")

// SnapshotObserver is told about every snapshot and alert evaluation a
// handler produces. observability.TwinMetrics implements it.
type SnapshotObserver interface {
	RecordSnapshot(snap sensors.Snapshot)
	RecordAlerts(summary alerts.Summary)
}

// abortWithError logs err, marks the span failed and writes {"detail"}.
func abortWithError(c *gin.Context, span trace.Span, status int, detail string, err error) {
	if err != nil {
		span.RecordError(err)
		if status >= 500 {
			slog.Error(detail, "path", c.FullPath(), "error", err)
		} else {
			slog.Warn(detail, "path", c.FullPath(), "error", err)
		}
	}
	span.SetStatus(codes.Error, detail)
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// bindOptionalJSON decodes a JSON body into dst, treating an absent body
// as "use defaults".
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func observeSnapshot(obs SnapshotObserver, snap sensors.Snapshot) {
	if obs != nil {
		obs.RecordSnapshot(snap)
	}
}
