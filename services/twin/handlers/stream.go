// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/middleware"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// DefaultStreamInterval is how often the sensor stream pushes a frame.
const DefaultStreamInterval = 2 * time.Second

const streamWriteTimeout = 5 * time.Second

// newUpgrader accepts requests without an Origin header (non-browser
// clients) and browser requests from the CORS allow-list.
func newUpgrader(origins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || middleware.OriginAllowed(origins, origin)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
	}
}

// StreamFrame is one message on the sensor stream.
type StreamFrame struct {
	Type          string           `json:"type"`
	Timestamp     time.Time        `json:"timestamp"`
	OverallStatus sensors.Status   `json:"overall_status"`
	Data          sensors.Snapshot `json:"data"`
	Alerts        alerts.Summary   `json:"alerts"`
}

// ConnectionGauge tracks open stream connections.
type ConnectionGauge interface {
	Inc()
	Dec()
}

// HandleSensorStream upgrades to a websocket and pushes a refreshed
// snapshot every interval until the client goes away.
//
// # Description
//
// The first frame is sent immediately. A reader goroutine drains client
// messages so close frames are noticed; any read error ends the stream.
//
// # Inputs
//
//   - store: Refreshed once per frame.
//   - evaluator: Produces the alert summary in each frame.
//   - interval: Push period; non-positive uses DefaultStreamInterval.
//   - origins: Browser origins allowed to connect, as for CORS.
//   - gauge: Open-connection gauge; may be nil.
func HandleSensorStream(store *sensors.Store, evaluator *alerts.Evaluator, interval time.Duration, origins []string, gauge ConnectionGauge) gin.HandlerFunc {
	if interval <= 0 {
		interval = DefaultStreamInterval
	}
	upgrader := newUpgrader(origins)
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		if gauge != nil {
			gauge.Inc()
			defer gauge.Dec()
		}
		slog.Info("Sensor stream client connected", "remote", c.ClientIP())

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() error {
			snap := store.RefreshAll()
			frame := StreamFrame{
				Type:          "sensor_update",
				Timestamp:     time.Now(),
				OverallStatus: snap.OverallStatus(),
				Data:          snap,
				Alerts:        alerts.Summarize(evaluator.Evaluate(snap)),
			}
			_ = ws.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			return ws.WriteJSON(frame)
		}

		if err := send(); err != nil {
			slog.Warn("Failed to write sensor frame", "error", err)
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		ctx := c.Request.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-closed:
				slog.Info("Sensor stream client disconnected")
				return
			case <-ticker.C:
				if err := send(); err != nil {
					slog.Warn("Failed to write sensor frame", "error", err)
					return
				}
			}
		}
	}
}
