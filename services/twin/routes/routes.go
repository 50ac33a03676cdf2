// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

// Package routes registers the twin's HTTP surface on a gin engine.
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/agents"
	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/guard"
	"github.com/xrvnd/cement-ai/services/twin/handlers"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
	"github.com/xrvnd/cement-ai/services/twin/services"
)

// Dependencies carries everything the handlers close over.
//
// # Description
//
// Runner nil disables the agent and optimization routes. StreamInterval
// zero disables the websocket stream. Gatherer nil disables /metrics.
type Dependencies struct {
	Info       handlers.ServiceInfo
	Store      *sensors.Store
	Simulator  *sensors.Simulator
	Evaluator  *alerts.Evaluator
	Aggregator *dashboard.Aggregator
	Builder    *prompts.Builder
	LLM        llm.LLMClient
	PlantGPT   *services.PlantGPT
	Runner     *agents.Runner
	// Guard screens knowledge uploads. Nil accepts everything.
	Guard *guard.Engine

	Observer       handlers.SnapshotObserver
	StreamInterval time.Duration
	StreamGauge    handlers.ConnectionGauge
	// Origins is the CORS allow-list, also enforced on the websocket.
	Origins        []string
	Gatherer       prometheus.Gatherer
}

// SetupRoutes registers every route on router.
func SetupRoutes(router *gin.Engine, d Dependencies) {
	router.GET("/", handlers.HandleRoot(d.Info))
	router.GET("/health", handlers.HandleHealth(d.Info))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.GET("/sensors", handlers.HandleListSensors(d.Store, d.Observer))
		api.GET("/sensors/:id", handlers.HandleGetSensor(d.Store))
		api.POST("/sensors/:id/calibrate", handlers.HandleCalibrateSensor(d.Store))
		api.GET("/alerts", handlers.HandleAlerts(d.Store, d.Evaluator, d.Observer))
		api.GET("/dashboard/summary", handlers.HandleDashboardSummary(d.Store, d.Evaluator, d.Aggregator))
		api.GET("/simulation", handlers.HandleSimulation(d.Simulator))
		api.GET("/mill", handlers.HandleMill(d.Simulator))

		api.POST("/analyze/kiln", handlers.HandleAnalyzeKiln(d.Store, d.Builder, d.LLM, d.Observer))
		api.POST("/analyze/mill", handlers.HandleAnalyzeMill(d.Store, d.Builder, d.LLM, d.Observer))
		api.POST("/ai/analyze", handlers.HandleComprehensiveAnalysis(d.Store, d.Builder, d.LLM, d.Observer))
		api.POST("/ai/analyze-image", handlers.HandleAnalyzeImage(d.Builder, d.LLM))

		if d.Runner != nil {
			api.GET("/agents", handlers.HandleListAgents(d.Runner))
			api.POST("/agents/:type/execute", handlers.HandleExecuteAgent(d.Runner, d.Store, d.Observer))
			api.GET("/tasks", handlers.HandleListTasks(d.Runner))
			api.GET("/tasks/:id", handlers.HandleGetTask(d.Runner))
			api.POST("/optimize/comprehensive", handlers.HandleOptimize(d.Runner, d.Store, d.Observer))
		}
		if d.StreamInterval > 0 {
			api.GET("/stream/sensors", handlers.HandleSensorStream(d.Store, d.Evaluator, d.StreamInterval, d.Origins, d.StreamGauge))
		}

		// Versioned routes kept for the dashboard frontend
		v1 := api.Group("/v1")
		{
			v1.POST("/ai/analyze-equipment", handlers.HandleAnalyzeEquipment(d.Store, d.Builder, d.LLM, d.Observer))
			v1.POST("/gemini/generate", handlers.HandleGenerate(d.Builder, d.LLM))
			v1.POST("/dashboard/", handlers.HandlePlantDashboard(d.Store, d.Aggregator))

			plantgpt := v1.Group("/plantgpt")
			{
				plantgpt.POST("/chat", handlers.HandleChat(d.PlantGPT))
				plantgpt.GET("/conversations/:id/history", handlers.HandleConversationHistory(d.PlantGPT.Store()))
				plantgpt.DELETE("/conversations/:id", handlers.HandleClearConversation(d.PlantGPT.Store()))
				if r := d.PlantGPT.Retriever(); r != nil {
					plantgpt.POST("/knowledge/search", handlers.HandleKnowledgeSearch(r))
					plantgpt.POST("/knowledge/add", handlers.HandleKnowledgeAdd(r, d.Guard))
				}
				plantgpt.GET("/capabilities", handlers.HandlePlantGPTCapabilities())
				plantgpt.GET("/health", handlers.HandlePlantGPTHealth(d.PlantGPT))
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
}
