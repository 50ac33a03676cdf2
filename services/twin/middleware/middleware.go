// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package middleware provides the gin middleware shared by every twin route.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	CORS ──► preflight? answer 204 and stop
//	   │
//	   ▼
//	RequestMetrics ──► handler ──► record route, method, status
package middleware

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultOrigins are the local front-end origins allowed when CORS_ORIGINS
// is unset.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// ParseOrigins splits a comma separated origin list, dropping blanks.
// An empty input yields DefaultOrigins.
func ParseOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultOrigins)
	}
	return out
}

// =============================================================================
// CORS
// =============================================================================

// OriginAllowed reports whether origin is in origins, or origins holds "*".
func OriginAllowed(origins []string, origin string) bool {
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

// CORS answers cross-origin requests from the allowed origins.
//
// # Description
//
// Matching origins are echoed back with credentials allowed. "*" in the
// list allows any origin. OPTIONS preflights end with 204 without reaching
// the handler, whether or not the origin matched.
//
// # Inputs
//
//   - origins: Allowed origins, typically from ParseOrigins.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware for router.Use.
func CORS(origins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && OriginAllowed(origins, origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// =============================================================================
// Request Metrics
// =============================================================================

// HTTPRecorder receives one observation per completed request.
type HTTPRecorder interface {
	RecordHTTPRequest(route, method string, status int)
}

// RequestMetrics records every request against its route template, so
// /api/sensors/temp1 and /api/sensors/load share the /api/sensors/:id
// series.
func RequestMetrics(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		if rec != nil {
			rec.RecordHTTPRequest(c.FullPath(), c.Request.Method, status)
		}
		slog.Debug("Request served",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
