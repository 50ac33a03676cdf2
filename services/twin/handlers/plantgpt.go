// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/xrvnd/cement-ai/pkg/validation"
	"github.com/xrvnd/cement-ai/services/twin/conversation"
	"github.com/xrvnd/cement-ai/services/twin/datatypes"
	"github.com/xrvnd/cement-ai/services/twin/guard"
	"github.com/xrvnd/cement-ai/services/twin/knowledge"
	"github.com/xrvnd/cement-ai/services/twin/services"
)

// HandleChat answers one PlantGPT message.
func HandleChat(gpt *services.PlantGPT) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleChat")
		defer span.End()

		var req datatypes.ChatRequest
		if err := bindOptionalJSON(c, &req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			abortWithError(c, span, http.StatusBadRequest, "Message is required", nil)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}

		resp, err := gpt.Chat(ctx, req)
		if err != nil {
			abortWithError(c, span, conversationErrorStatus(err), "PlantGPT chat failed: "+err.Error(), err)
			return
		}
		span.SetAttributes(attribute.String("conversation.id", resp.ConversationID))
		c.JSON(http.StatusOK, resp)
	}
}

// conversationErrorStatus maps a bad conversation id to 400 and anything
// else to 500.
func conversationErrorStatus(err error) int {
	if errors.Is(err, conversation.ErrEmptyID) || errors.Is(err, validation.ErrInvalidIdentifier) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleConversationHistory returns the stored messages of a conversation,
// oldest first. Unknown ids yield an empty list.
func HandleConversationHistory(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleConversationHistory")
		defer span.End()

		id := c.Param("id")
		span.SetAttributes(attribute.String("conversation.id", id))
		history, err := store.History(ctx, id)
		if err != nil {
			abortWithError(c, span, conversationErrorStatus(err), "Failed to get conversation history: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"conversation_id": id,
			"messages":        history,
			"count":           len(history),
		})
	}
}

// HandleClearConversation deletes a conversation. Clearing an unknown id
// succeeds.
func HandleClearConversation(store conversation.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleClearConversation")
		defer span.End()

		id := c.Param("id")
		span.SetAttributes(attribute.String("conversation.id", id))
		if err := store.Clear(ctx, id); err != nil {
			abortWithError(c, span, conversationErrorStatus(err), "Failed to clear conversation: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Conversation cleared successfully"})
	}
}

// HandleKnowledgeSearch queries the knowledge base.
func HandleKnowledgeSearch(retriever knowledge.Retriever) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleKnowledgeSearch")
		defer span.End()

		var req datatypes.KnowledgeSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}
		n := req.NResults
		if n == 0 {
			n = knowledge.DefaultResults
		}

		results, err := retriever.Search(ctx, req.Query, n)
		switch {
		case errors.Is(err, knowledge.ErrEmptyQuery):
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		case err != nil:
			abortWithError(c, span, http.StatusInternalServerError, "Knowledge base search failed: "+err.Error(), err)
			return
		}
		span.SetAttributes(attribute.Int("knowledge.results", len(results)))
		c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
	}
}

// HandleKnowledgeAdd stores a new knowledge document. When g is non-nil the
// title and content are scanned first and documents with high-confidence
// findings are rejected with 422.
func HandleKnowledgeAdd(retriever knowledge.Retriever, g *guard.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandleKnowledgeAdd")
		defer span.End()

		var req datatypes.KnowledgeAddRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, span, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if err := req.Validate(); err != nil {
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		}

		classification := guard.ClassPublic
		if g != nil {
			findings := g.Scan(req.Title + "\n" + req.Content)
			if guard.Blocking(findings) {
				span.SetAttributes(attribute.Int("guard.findings", len(findings)))
				slog.Warn("Rejected knowledge document with sensitive content",
					"title", req.Title, "findings", len(findings))
				span.SetStatus(codes.Error, "sensitive content")
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
					"detail":   "Document contains sensitive content",
					"findings": findings,
				})
				return
			}
			classification = g.Classify(req.Title + "\n" + req.Content)
		}

		id, err := retriever.Add(ctx, knowledge.Document{
			Title:    req.Title,
			Content:  req.Content,
			Category: req.Category,
			Tags:     req.Tags,
		})
		switch {
		case errors.Is(err, knowledge.ErrInvalidDocument):
			abortWithError(c, span, http.StatusBadRequest, err.Error(), err)
			return
		case err != nil:
			abortWithError(c, span, http.StatusInternalServerError, "Failed to add document: "+err.Error(), err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"document_id":    id,
			"message":        "Document added successfully",
			"classification": classification,
		})
	}
}

// HandlePlantGPTHealth reports knowledge base and conversation counts.
func HandlePlantGPTHealth(gpt *services.PlantGPT) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "HandlePlantGPTHealth")
		defer span.End()

		documents := 0
		if r := gpt.Retriever(); r != nil {
			n, err := r.Len(ctx)
			if err != nil {
				abortWithError(c, span, http.StatusServiceUnavailable, "PlantGPT service unavailable", err)
				return
			}
			documents = n
		}
		c.JSON(http.StatusOK, gin.H{
			"status":               "healthy",
			"service":              "plantgpt",
			"features":             []string{"RAG", "Knowledge Base", "Conversation Management"},
			"knowledge_documents":  documents,
			"active_conversations": gpt.Store().Count(),
			"timestamp":            time.Now(),
		})
	}
}

var (
	plantGPTCapabilities = []string{
		"Cement plant operations guidance",
		"Process optimization recommendations",
		"Quality control assistance",
		"Energy efficiency advice",
		"Maintenance planning support",
		"Safety and compliance guidance",
		"Alternate fuel optimization",
		"Troubleshooting assistance",
	}
	plantGPTKnowledgeAreas = []string{
		"Kiln operations",
		"Grinding processes",
		"Quality control",
		"Energy management",
		"Predictive maintenance",
		"Alternate fuels",
		"Environmental compliance",
		"Process optimization",
	}
)

// HandlePlantGPTCapabilities lists what the assistant covers.
func HandlePlantGPTCapabilities() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"capabilities":    plantGPTCapabilities,
			"knowledge_areas": plantGPTKnowledgeAreas,
		})
	}
}
