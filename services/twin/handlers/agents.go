// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xrvnd/cement-ai/services/twin/agents"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// HandleListAgents describes every registered agent.
func HandleListAgents(runner *agents.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg := runner.Registry()
		c.JSON(http.StatusOK, gin.H{
			"available_agents": reg.Describe(),
			"total_agents":     reg.Len(),
			"timestamp":        time.Now(),
		})
	}
}

// HandleExecuteAgent runs one agent task. An LLM failure is reported in
// the result with status "failed", not as an HTTP error.
func HandleExecuteAgent(runner *agents.Runner, store *sensors.Store, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleExecuteAgent")
		defer span.End()

		kind := agents.Kind(c.Param("type"))
		span.SetAttributes(attribute.String("agent.kind", string(kind)))
		if _, err := runner.Registry().Get(kind); err != nil {
			abortWithError(c, span, http.StatusNotFound, fmt.Sprintf("Agent type '%s' not found", kind), err)
			return
		}

		var req datatypes.AgentTaskRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}

		snap := sensors.Snapshot{}
		if req.SensorsIncluded() {
			snap = store.RefreshAll()
			observeSnapshot(obs, snap)
		}

		res, err := runner.Execute(ctx, kind, req.TaskDescription, snap)
		switch {
		case errors.Is(err, agents.ErrUnknownAgent):
			abortWithError(c, span, http.StatusNotFound, fmt.Sprintf("Agent type '%s' not found", kind), err)
			return
		case err != nil:
			abortWithError(c, span, http.StatusInternalServerError, "Agent task execution failed: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"task_id":    res.TaskID,
			"agent_type": res.AgentType,
			"result":     res,
			"timestamp":  time.Now(),
		})
	}
}

// HandleListTasks returns the recent task log, oldest first.
func HandleListTasks(runner *agents.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks := runner.Tasks()
		c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
	}
}

// HandleGetTask returns one logged task result.
func HandleGetTask(runner *agents.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "HandleGetTask")
		defer span.End()

		id := c.Param("id")
		res, ok := runner.Task(id)
		if !ok {
			abortWithError(c, span, http.StatusNotFound, fmt.Sprintf("Task '%s' not found", id), nil)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// HandleOptimize runs every agent in parallel over fresh readings.
func HandleOptimize(runner *agents.Runner, store *sensors.Store, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleOptimize")
		defer span.End()

		snap := store.RefreshAll()
		observeSnapshot(obs, snap)
		opt, err := runner.RunAll(ctx, snap)
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Optimization failed: "+err.Error(), err)
			return
		}
		span.SetAttributes(attribute.Int("optimization.recommendations", opt.Summary.TotalRecommendations))
		c.JSON(http.StatusOK, opt)
	}
}
