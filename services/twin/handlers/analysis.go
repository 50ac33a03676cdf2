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
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

// Fixed confidence placeholders reported with each analysis kind.
const (
	analysisConfidence  = 0.95
	equipmentConfidence = 0.94
	visionConfidence    = 0.90
)

// MaxImageBytes bounds an uploaded image.
const MaxImageBytes = 10 << 20

var analysisTemperature = float32(0.7)

func analysisParams() llm.GenerationParams {
	t := analysisTemperature
	return llm.GenerationParams{Temperature: &t}
}

// runAnalysis renders kind over data and sends it to the LLM.
func runAnalysis(c *gin.Context, client llm.LLMClient, builder *prompts.Builder, kind prompts.Kind, data prompts.Data) (string, error) {
	prompt, err := builder.Build(kind, data)
	if err != nil {
		return "", err
	}
	return client.Generate(c.Request.Context(), prompt, analysisParams())
}

// HandleAnalyzeKiln runs the kiln operation analysis over fresh readings.
func HandleAnalyzeKiln(store *sensors.Store, builder *prompts.Builder, client llm.LLMClient, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalyzeKiln")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		snap := store.RefreshAll()
		observeSnapshot(obs, snap)
		text, err := runAnalysis(c, client, builder, prompts.KindKiln, prompts.Data{Readings: snap})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Kiln analysis failed: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"text":            text,
			"confidence":      analysisConfidence,
			"recommendations": []any{},
			"analysis_type":   "kiln_analysis",
			"timestamp":       time.Now(),
			"sensor_data": gin.H{
				"preheater_temp":    snap.Value(catalog.Preheater),
				"calciner_temp":     snap.Value(catalog.Calciner),
				"kiln_inlet_temp":   snap.Value(catalog.KilnInlet),
				"burning_zone_temp": snap.Value(catalog.BurningZone),
				"cooler_temp":       snap.Value(catalog.Cooler),
				"vibration":         snap.Value(catalog.Vibration),
				"motor_load":        snap.Value(catalog.MotorLoad),
				"nox_emissions":     snap.Value(catalog.NOx),
			},
		})
	}
}

// HandleAnalyzeMill runs the mill operation analysis over fresh readings.
func HandleAnalyzeMill(store *sensors.Store, builder *prompts.Builder, client llm.LLMClient, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalyzeMill")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		snap := store.RefreshAll()
		observeSnapshot(obs, snap)
		text, err := runAnalysis(c, client, builder, prompts.KindMill, prompts.Data{Readings: snap})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Mill analysis failed: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"text":            text,
			"confidence":      analysisConfidence,
			"recommendations": []any{},
			"analysis_type":   "mill_analysis",
			"timestamp":       time.Now(),
			"sensor_data": gin.H{
				"feed_rate":     snap.Value(catalog.MillFeed),
				"pressure":      snap.Value(catalog.MillPressure),
				"particle_size": snap.Value(catalog.MillParticle),
				"efficiency":    snap.Value(catalog.MillEfficiency),
			},
		})
	}
}

// HandleAnalyzeEquipment adds rule-based equipment health to the LLM
// equipment monitoring analysis.
func HandleAnalyzeEquipment(store *sensors.Store, builder *prompts.Builder, client llm.LLMClient, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalyzeEquipment")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		snap := store.RefreshAll()
		observeSnapshot(obs, snap)
		text, err := runAnalysis(c, client, builder, prompts.KindEquipment, prompts.Data{Readings: snap})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Equipment monitoring failed: "+err.Error(), err)
			return
		}
		insights := dashboard.EquipmentInsights(snap)
		recommendations := make([]string, 0, len(insights))
		for _, in := range insights {
			if in.Recommendation != "" {
				recommendations = append(recommendations, in.Recommendation)
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"text":               text,
			"confidence":         equipmentConfidence,
			"recommendations":    recommendations,
			"analysis_type":      "equipment_monitoring",
			"timestamp":          time.Now(),
			"equipment_status":   dashboard.EquipmentStatus(snap),
			"overall_assessment": dashboard.OverallAssessment(snap),
			"insights":           insights,
		})
	}
}

// statusRecommendation is raised for every non-normal reading in a
// comprehensive analysis.
type statusRecommendation struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Priority       string `json:"priority"`
	Category       string `json:"category"`
	ActionRequired bool   `json:"action_required"`
}

func statusRecommendations(cat *catalog.Catalog, snap sensors.Snapshot) []statusRecommendation {
	out := make([]statusRecommendation, 0)
	for _, def := range cat.All() {
		r, ok := snap[def.ID]
		if !ok {
			continue
		}
		switch r.Status {
		case sensors.StatusCritical:
			out = append(out, statusRecommendation{
				Title:          "Critical Alert: " + def.Name,
				Description:    fmt.Sprintf("Value %g %s exceeds critical threshold", r.Value, r.Unit),
				Priority:       "critical",
				Category:       "safety",
				ActionRequired: true,
			})
		case sensors.StatusWarning:
			out = append(out, statusRecommendation{
				Title:       "Warning: " + def.Name,
				Description: fmt.Sprintf("Value %g %s outside optimal range", r.Value, r.Unit),
				Priority:    "medium",
				Category:    "optimization",
			})
		}
	}
	return out
}

// HandleComprehensiveAnalysis runs the configurable analysis of
// POST /api/ai/analyze.
//
// # Description
//
// include_sensors (default true) refreshes and embeds the readings;
// custom_prompt is appended as the operator request. Recommendations are
// derived from reading statuses, independent of the LLM output.
func HandleComprehensiveAnalysis(store *sensors.Store, builder *prompts.Builder, client llm.LLMClient, obs SnapshotObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleComprehensiveAnalysis")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req datatypes.AnalysisRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}
		span.SetAttributes(attribute.String("analysis.type", req.AnalysisType))

		snap := sensors.Snapshot{}
		if *req.IncludeSensors {
			snap = store.RefreshAll()
			observeSnapshot(obs, snap)
		}
		text, err := runAnalysis(c, client, builder, prompts.KindComprehensive, prompts.Data{
			Readings:     snap,
			AnalysisType: req.AnalysisType,
			Query:        req.CustomPrompt,
		})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "AI analysis failed: "+err.Error(), err)
			return
		}

		recs := statusRecommendations(store.Catalog(), snap)
		critical, warnings := 0, 0
		for _, r := range recs {
			if r.Priority == "critical" {
				critical++
			} else {
				warnings++
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"text":            text,
			"confidence":      analysisConfidence,
			"recommendations": recs,
			"analysis_type":   req.AnalysisType,
			"timestamp":       time.Now(),
			"sensor_summary": gin.H{
				"total_sensors":   len(snap),
				"critical_alerts": critical,
				"warnings":        warnings,
			},
		})
	}
}

// HandleAnalyzeImage sends an uploaded plant image to the vision model.
//
// # Outputs
//
//   - 400: missing file, non-image content type, or oversized upload.
//   - 503: the configured backend has no vision support or no API key.
//   - 500: the provider call failed.
func HandleAnalyzeImage(builder *prompts.Builder, client llm.LLMClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleAnalyzeImage")
		defer span.End()

		header, err := c.FormFile("file")
		if err != nil {
			abortWithError(c, span, http.StatusBadRequest, "file is required", err)
			return
		}
		contentType := header.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			abortWithError(c, span, http.StatusBadRequest, "File must be an image", nil)
			return
		}
		if header.Size > MaxImageBytes {
			abortWithError(c, span, http.StatusBadRequest,
				fmt.Sprintf("image exceeds %d bytes", MaxImageBytes), nil)
			return
		}
		f, err := header.Open()
		if err != nil {
			abortWithError(c, span, http.StatusBadRequest, "cannot read upload", err)
			return
		}
		image, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
		_ = f.Close()
		if err != nil {
			abortWithError(c, span, http.StatusBadRequest, "cannot read upload", err)
			return
		}
		span.SetAttributes(
			attribute.String("image.content_type", contentType),
			attribute.Int("image.size", len(image)),
		)

		userPrompt := c.PostForm("prompt")
		if userPrompt == "" {
			userPrompt = c.Query("prompt")
		}
		prompt, err := builder.Build(prompts.KindVision, prompts.Data{Query: userPrompt})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Vision analysis failed: "+err.Error(), err)
			return
		}

		text, err := llm.GenerateWithImage(ctx, client, prompt, image, contentType, analysisParams())
		switch {
		case errors.Is(err, llm.ErrDisabled), errors.Is(err, llm.ErrVisionUnsupported):
			abortWithError(c, span, http.StatusServiceUnavailable,
				"Vision analysis not available - Gemini API not configured", err)
			return
		case err != nil:
			abortWithError(c, span, http.StatusInternalServerError, "Vision analysis failed: "+err.Error(), err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"text":          text,
			"confidence":    visionConfidence,
			"analysis_type": "vision_analysis",
			"image_info": gin.H{
				"filename":     header.Filename,
				"size":         len(image),
				"content_type": contentType,
			},
			"timestamp": time.Now(),
		})
	}
}

// HandleGenerate wraps a free-form prompt in the plant expert preamble.
func HandleGenerate(builder *prompts.Builder, client llm.LLMClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleGenerate")
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		var req datatypes.GenerateRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			abortWithError(c, span, http.StatusBadRequest, "Prompt is required", nil)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}
		if req.AnalysisType == "" {
			req.AnalysisType = "general"
		}

		text, err := runAnalysis(c, client, builder, prompts.KindGenerate, prompts.Data{
			Query:        req.Prompt,
			Context:      req.Context,
			AnalysisType: req.AnalysisType,
		})
		if err != nil {
			abortWithError(c, span, http.StatusInternalServerError, "Gemini generation failed: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"text":            text,
			"confidence":      analysisConfidence,
			"recommendations": []any{},
			"analysis_type":   req.AnalysisType,
			"timestamp":       time.Now(),
		})
	}
}
