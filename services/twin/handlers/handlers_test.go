// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrvnd/cement-ai/pkg/validation"
	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/agents"
	"github.com/xrvnd/cement-ai/services/twin/alerts"
	"github.com/xrvnd/cement-ai/services/twin/catalog"
	"github.com/xrvnd/cement-ai/services/twin/conversation"
	"github.com/xrvnd/cement-ai/services/twin/dashboard"
	"github.com/xrvnd/cement-ai/services/twin/guard"
	"github.com/xrvnd/cement-ai/services/twin/knowledge"
	"github.com/xrvnd/cement-ai/services/twin/middleware"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
	"github.com/xrvnd/cement-ai/services/twin/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ============================================================================
// Test Setup
// ============================================================================

// mockLLM records prompts and returns a canned reply or error.
type mockLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
	images  int
}

func (m *mockLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func (m *mockLLM) GenerateWithImage(_ context.Context, prompt string, image []byte, _ string, _ llm.GenerationParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.images++
	return m.reply, m.err
}

// textOnlyLLM has no vision support.
type textOnlyLLM struct{}

func (textOnlyLLM) Generate(context.Context, string, llm.GenerationParams) (string, error) {
	return "ok", nil
}

type testEnv struct {
	store     *sensors.Store
	evaluator *alerts.Evaluator
	client    *mockLLM
	router    *gin.Engine
	convs     conversation.Store
	runner    *agents.Runner
}

func newTestEnv(t *testing.T, client llm.LLMClient) *testEnv {
	t.Helper()
	cat := catalog.Default()
	store := sensors.NewStore(cat, sensors.NewGenerator(rand.NewPCG(42, 7)))
	evaluator := alerts.NewEvaluator(cat, nil)
	agg := dashboard.NewAggregator(dashboard.DefaultStaticConfig(), dashboard.DefaultPlants(), rand.NewPCG(1, 2))
	builder, err := prompts.NewBuilder(prompts.Config{PlantName: "JK Cement Plant", PlantLocation: "India"})
	require.NoError(t, err)

	contentGuard, err := guard.New()
	require.NoError(t, err)

	convs := conversation.NewMemoryStore(0)
	gpt, err := services.NewPlantGPT(convs, knowledge.NewMemoryRetriever(knowledge.Builtin()), builder, client)
	require.NoError(t, err)
	runner := agents.NewRunner(agents.DefaultRegistry(), builder, client)
	sim := sensors.NewSimulator(rand.NewPCG(5, 6))

	r := gin.New()
	r.GET("/", HandleRoot(ServiceInfo{Version: "test", AIEnabled: true, Catalog: cat, Conversations: convs, Runner: runner}))
	r.GET("/health", HandleHealth(ServiceInfo{Version: "test", Catalog: cat, Conversations: convs, Runner: runner}))
	r.GET("/api/sensors", HandleListSensors(store, nil))
	r.GET("/api/sensors/:id", HandleGetSensor(store))
	r.POST("/api/sensors/:id/calibrate", HandleCalibrateSensor(store))
	r.GET("/api/alerts", HandleAlerts(store, evaluator, nil))
	r.GET("/api/dashboard/summary", HandleDashboardSummary(store, evaluator, agg))
	r.POST("/api/v1/dashboard/", HandlePlantDashboard(store, agg))
	r.GET("/api/simulation", HandleSimulation(sim))
	r.GET("/api/mill", HandleMill(sim))
	r.POST("/api/analyze/kiln", HandleAnalyzeKiln(store, builder, client, nil))
	r.POST("/api/analyze/mill", HandleAnalyzeMill(store, builder, client, nil))
	r.POST("/api/v1/ai/analyze-equipment", HandleAnalyzeEquipment(store, builder, client, nil))
	r.POST("/api/ai/analyze", HandleComprehensiveAnalysis(store, builder, client, nil))
	r.POST("/api/ai/analyze-image", HandleAnalyzeImage(builder, client))
	r.POST("/api/v1/gemini/generate", HandleGenerate(builder, client))
	r.POST("/api/v1/plantgpt/chat", HandleChat(gpt))
	r.GET("/api/v1/plantgpt/conversations/:id/history", HandleConversationHistory(convs))
	r.DELETE("/api/v1/plantgpt/conversations/:id", HandleClearConversation(convs))
	r.POST("/api/v1/plantgpt/knowledge/search", HandleKnowledgeSearch(gpt.Retriever()))
	r.POST("/api/v1/plantgpt/knowledge/add", HandleKnowledgeAdd(gpt.Retriever(), contentGuard))
	r.GET("/api/v1/plantgpt/health", HandlePlantGPTHealth(gpt))
	r.GET("/api/v1/plantgpt/capabilities", HandlePlantGPTCapabilities())
	r.GET("/api/agents", HandleListAgents(runner))
	r.POST("/api/agents/:type/execute", HandleExecuteAgent(runner, store, nil))
	r.GET("/api/tasks", HandleListTasks(runner))
	r.GET("/api/tasks/:id", HandleGetTask(runner))
	r.POST("/api/optimize/comprehensive", HandleOptimize(runner, store, nil))
	r.GET("/api/stream/sensors", HandleSensorStream(store, evaluator, 10*time.Millisecond, middleware.DefaultOrigins, nil))

	env := &testEnv{store: store, evaluator: evaluator, router: r, convs: convs, runner: runner}
	if m, ok := client.(*mockLLM); ok {
		env.client = m
	}
	return env
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	d, _ := decode(t, w)["detail"].(string)
	return d
}

// ============================================================================
// Sensors
// ============================================================================

func TestListSensors(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "ok"})
	w := env.do(http.MethodGet, "/api/sensors", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "success", body["status"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 17.0, summary["total_sensors"])
	data := body["data"].(map[string]any)
	assert.Len(t, data, 17)
	assert.Contains(t, data, "mill-eff")
}

func TestGetSensor(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodGet, "/api/sensors/load", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, 87.0, data["value"])
	assert.Equal(t, "%", data["unit"])

	w = env.do(http.MethodGet, "/api/sensors/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Sensor 'nope' not found", detail(t, w))
}

func TestCalibrateSensor(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"above max", "/api/sensors/load/calibrate?target_value=120", http.StatusBadRequest},
		{"below min", "/api/sensors/load/calibrate?target_value=10", http.StatusBadRequest},
		{"not a number", "/api/sensors/load/calibrate?target_value=hot", http.StatusBadRequest},
		{"nan", "/api/sensors/load/calibrate?target_value=NaN", http.StatusBadRequest},
		{"missing", "/api/sensors/load/calibrate", http.StatusBadRequest},
		{"unknown sensor", "/api/sensors/nope/calibrate?target_value=5", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, detail(t, w))
		})
	}

	w := env.do(http.MethodPost, "/api/sensors/load/calibrate?target_value=120", nil)
	assert.Equal(t, "Target value must be between 70 and 100", detail(t, w))

	w = env.do(http.MethodPost, "/api/sensors/load/calibrate?target_value=92.5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, 92.5, data["value"])

	r, err := env.store.Get(catalog.MotorLoad)
	require.NoError(t, err)
	assert.Equal(t, 92.5, r.Value)
}

func TestSimulationAndMill(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})
	for i := 0; i < 25; i++ {
		env.do(http.MethodGet, "/api/simulation", nil)
	}
	w := env.do(http.MethodGet, "/api/simulation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["data"], sensors.SeriesWindow)
	assert.Contains(t, body["latest"], "tsr_percentage")

	w = env.do(http.MethodGet, "/api/mill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

// ============================================================================
// Alerts and Dashboard
// ============================================================================

func TestDashboardSummary_OverallEfficiency(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})
	_, err := env.store.Set(catalog.MillEfficiency, 78)
	require.NoError(t, err)
	_, err = env.store.Set(catalog.MotorLoad, 87)
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/api/dashboard/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]any)
	assert.Equal(t, 82.5, summary["overall_efficiency"])
	assert.Equal(t, "normal", summary["system_status"])
}

func TestAlerts_SingleCritical(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode(t, w)["count"])

	def, err := catalog.Default().Get(catalog.BurningZone)
	require.NoError(t, err)
	_, err = env.store.Set(catalog.BurningZone, def.Critical+1)
	require.NoError(t, err)

	w = env.do(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	list := body["alerts"].([]any)
	require.Len(t, list, 1)
	alert := list[0].(map[string]any)
	assert.Equal(t, catalog.BurningZone, alert["sensor"])
	assert.Equal(t, "critical", alert["severity"])
	summary := body["summary"].(map[string]any)
	assert.Equal(t, 1.0, summary["critical"])

	w = env.do(http.MethodGet, "/api/dashboard/summary", nil)
	assert.Equal(t, "critical", decode(t, w)["summary"].(map[string]any)["system_status"])
}

func TestPlantDashboard(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodPost, "/api/v1/dashboard/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodPost, "/api/v1/dashboard/", map[string]string{"plant": "rajasthan"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w))

	w = env.do(http.MethodPost, "/api/v1/dashboard/", map[string]string{"plant": strings.Repeat("x", 65)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ============================================================================
// Analysis
// ============================================================================

func TestAnalyzeKiln(t *testing.T) {
	client := &mockLLM{reply: "kiln looks stable"}
	env := newTestEnv(t, client)

	w := env.do(http.MethodPost, "/api/analyze/kiln", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "kiln looks stable", body["text"])
	assert.Equal(t, 0.95, body["confidence"])
	assert.Equal(t, "kiln_analysis", body["analysis_type"])
	assert.Contains(t, body["sensor_data"], "burning_zone_temp")
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "JK CEMENT PLANT")
}

func TestAnalyze_LLMFailure(t *testing.T) {
	env := newTestEnv(t, &mockLLM{err: errors.New("boom")})

	for path, prefix := range map[string]string{
		"/api/analyze/kiln":            "Kiln analysis failed: ",
		"/api/analyze/mill":            "Mill analysis failed: ",
		"/api/v1/ai/analyze-equipment": "Equipment monitoring failed: ",
		"/api/ai/analyze":              "AI analysis failed: ",
	} {
		w := env.do(http.MethodPost, path, nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Equal(t, prefix+"boom", detail(t, w), path)
	}
}

func TestAnalyzeEquipment(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "fine"})
	w := env.do(http.MethodPost, "/api/v1/ai/analyze-equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 0.94, body["confidence"])
	assert.Len(t, body["equipment_status"], 2)
	assert.Contains(t, body, "overall_assessment")
	assert.Contains(t, body, "insights")
	recs, ok := body["recommendations"].([]any)
	require.True(t, ok, "recommendations is a list")
	insights := body["insights"].([]any)
	var want []any
	for _, in := range insights {
		if r := in.(map[string]any)["recommendation"]; r != "" {
			want = append(want, r)
		}
	}
	assert.ElementsMatch(t, want, recs)
}

func TestComprehensiveAnalysis(t *testing.T) {
	client := &mockLLM{reply: "analysis"}
	env := newTestEnv(t, client)

	w := env.do(http.MethodPost, "/api/ai/analyze", map[string]any{
		"include_sensors": false,
		"custom_prompt":   "focus on fuel",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "comprehensive", body["analysis_type"])
	assert.Equal(t, 0.0, body["sensor_summary"].(map[string]any)["total_sensors"])
	assert.Contains(t, client.prompts[0], "focus on fuel")

	w = env.do(http.MethodPost, "/api/ai/analyze", map[string]any{"analysis_type": "energy"})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "energy", body["analysis_type"])
	assert.Equal(t, 17.0, body["sensor_summary"].(map[string]any)["total_sensors"])
}

func TestStatusRecommendations(t *testing.T) {
	cat := catalog.Default()
	store := sensors.NewStore(cat, nil)
	_, _ = store.Set(catalog.BurningZone, 1601)
	_, _ = store.Set(catalog.Vibration, 3.5)

	recs := statusRecommendations(cat, store.Snapshot())
	require.Len(t, recs, 2)
	assert.Equal(t, "Critical Alert: Burning Zone Temperature", recs[0].Title)
	assert.True(t, recs[0].ActionRequired)
	assert.Equal(t, "medium", recs[1].Priority)
}

func TestGenerate(t *testing.T) {
	client := &mockLLM{reply: "generated"}
	env := newTestEnv(t, client)

	w := env.do(http.MethodPost, "/api/v1/gemini/generate", map[string]any{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Prompt is required", detail(t, w))

	w = env.do(http.MethodPost, "/api/v1/gemini/generate", map[string]any{
		"prompt":  "How do I lower fuel use?",
		"context": map[string]any{"line": 2},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "generated", body["text"])
	assert.Equal(t, "general", body["analysis_type"])
	assert.Contains(t, client.prompts[0], "How do I lower fuel use?")
}

func imageRequest(t *testing.T, contentType string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="kiln.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, mw.WriteField("prompt", "Inspect the kiln shell"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/analyze-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyzeImage(t *testing.T) {
	client := &mockLLM{reply: "shell looks intact"}
	env := newTestEnv(t, client)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, imageRequest(t, "image/png"))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "shell looks intact", body["text"])
	assert.Equal(t, 0.9, body["confidence"])
	assert.Equal(t, "kiln.png", body["image_info"].(map[string]any)["filename"])
	assert.Equal(t, 1, client.images)
	assert.Contains(t, client.prompts[0], "Inspect the kiln shell")

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, imageRequest(t, "text/plain"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File must be an image", detail(t, w))

	w = env.do(http.MethodPost, "/api/ai/analyze-image", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeImage_VisionUnavailable(t *testing.T) {
	for name, client := range map[string]llm.LLMClient{
		"disabled":  llm.Disabled{},
		"text only": textOnlyLLM{},
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, client)
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, imageRequest(t, "image/jpeg"))
			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		})
	}
}

// ============================================================================
// PlantGPT
// ============================================================================

func TestChat_RoundTrip(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "Keep the burning zone near 1450."})

	w := env.do(http.MethodPost, "/api/v1/plantgpt/chat", map[string]any{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Message is required", detail(t, w))

	w = env.do(http.MethodPost, "/api/v1/plantgpt/chat", map[string]any{"message": "How do I optimize kiln temperature?"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	id := body["conversation_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, 0.9, body["confidence"])
	assert.NotEmpty(t, body["sources"])

	w = env.do(http.MethodGet, "/api/v1/plantgpt/conversations/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Equal(t, 2.0, history["count"])
	msgs := history["messages"].([]any)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])

	w = env.do(http.MethodDelete, "/api/v1/plantgpt/conversations/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/v1/plantgpt/conversations/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode(t, w)["count"])
}

func TestChat_RejectsSlashInConversationID(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "x"})
	w := env.do(http.MethodPost, "/api/v1/plantgpt/chat", map[string]any{
		"message":         "hi",
		"conversation_id": "a/b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_UnsafeConversationIDOverBadger(t *testing.T) {
	builder, err := prompts.NewBuilder(prompts.Config{PlantName: "JK Cement Plant", PlantLocation: "India"})
	require.NoError(t, err)
	convs, err := conversation.OpenBadgerStore(conversation.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = convs.Close() })
	gpt, err := services.NewPlantGPT(convs, nil, builder, &mockLLM{reply: "ok"})
	require.NoError(t, err)

	r := gin.New()
	r.POST("/chat", HandleChat(gpt))
	r.GET("/conversations/:id/history", HandleConversationHistory(convs))

	for _, id := range []string{"shift 3", "shift\t3", "shift\x013"} {
		raw, _ := json.Marshal(map[string]any{"message": "hi", "conversation_id": id})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw)))
		assert.Equal(t, http.StatusBadRequest, w.Code, "id %q: %s", id, w.Body.String())
	}
	assert.Zero(t, convs.Count())

	raw, _ := json.Marshal(map[string]any{"message": "hi", "conversation_id": "shift-3"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(raw)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shift-3", decode(t, w)["conversation_id"])
}

func TestConversationErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, conversationErrorStatus(conversation.ErrEmptyID))
	assert.Equal(t, http.StatusBadRequest,
		conversationErrorStatus(fmt.Errorf("append user message: %w", validation.ValidateConversationID("shift 3"))))
	assert.Equal(t, http.StatusInternalServerError, conversationErrorStatus(errors.New("disk full")))
}

func TestChat_LLMFailureApologizes(t *testing.T) {
	env := newTestEnv(t, &mockLLM{err: errors.New("quota")})
	w := env.do(http.MethodPost, "/api/v1/plantgpt/chat", map[string]any{"message": "status?"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.ApologyText, decode(t, w)["response"])
}

func TestKnowledgeSearchAndAdd(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/search", map[string]any{"query": "kiln temperature", "n_results": 2})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.LessOrEqual(t, body["count"].(float64), 2.0)
	assert.NotZero(t, body["count"])

	w = env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/add", map[string]any{
		"title":    "Refractory Inspection",
		"content":  "Inspect refractory bricks with a shell scanner weekly.",
		"category": "maintenance",
		"tags":     []string{"refractory"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	added := decode(t, w)
	assert.NotEmpty(t, added["document_id"])
	assert.Equal(t, guard.ClassPublic, added["classification"])

	w = env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/add", map[string]any{"title": "no content"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/plantgpt/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7.0, decode(t, w)["knowledge_documents"])
}

func TestKnowledgeAdd_SensitiveContent(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/add", map[string]any{
		"title":   "Gateway setup",
		"content": "Set GEMINI_API_KEY=AIza" + strings.Repeat("k", 35) + " on the historian host.",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Document contains sensitive content", body["detail"])
	findings := body["findings"].([]any)
	require.NotEmpty(t, findings)
	first := findings[0].(map[string]any)
	assert.Equal(t, "gemini_api_key", first["pattern_id"])
	assert.NotContains(t, w.Body.String(), strings.Repeat("k", 35))

	w = env.do(http.MethodPost, "/api/v1/plantgpt/knowledge/add", map[string]any{
		"title":   "Shift contacts",
		"content": "Escalate kiln trips to ops@plant.example.com.",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "personal", decode(t, w)["classification"])

	w = env.do(http.MethodGet, "/api/v1/plantgpt/health", nil)
	assert.Equal(t, 7.0, decode(t, w)["knowledge_documents"], "rejected document is not stored")
}

func TestCapabilities(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})
	w := env.do(http.MethodGet, "/api/v1/plantgpt/capabilities", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["capabilities"], 8)
}

// ============================================================================
// Agents
// ============================================================================

func TestAgents(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "agent analysis"})

	w := env.do(http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 5.0, body["total_agents"])
	assert.Contains(t, body["available_agents"], "kiln_optimizer")

	w = env.do(http.MethodPost, "/api/agents/unknown/execute", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Agent type 'unknown' not found", detail(t, w))

	w = env.do(http.MethodPost, "/api/agents/kiln_optimizer/execute", map[string]any{"task_description": "Check shell"})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	taskID := body["task_id"].(string)
	assert.True(t, strings.HasPrefix(taskID, "kiln_optimizer-"))
	result := body["result"].(map[string]any)
	assert.Equal(t, "completed", result["status"])
	assert.Equal(t, "Check shell", result["task_description"])

	w = env.do(http.MethodGet, "/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, "/api/tasks/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(http.MethodGet, "/api/tasks", nil)
	assert.Equal(t, 1.0, decode(t, w)["count"])
}

func TestAgents_LLMFailureIsReportedInResult(t *testing.T) {
	env := newTestEnv(t, &mockLLM{err: errors.New("down")})
	w := env.do(http.MethodPost, "/api/agents/mill_optimizer/execute", nil)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)["result"].(map[string]any)
	assert.Equal(t, "failed", result["status"])
	assert.Equal(t, "down", result["error"])
}

func TestOptimize(t *testing.T) {
	env := newTestEnv(t, &mockLLM{reply: "ok"})
	w := env.do(http.MethodPost, "/api/optimize/comprehensive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	summary := body["optimization_summary"].(map[string]any)
	assert.Equal(t, 5.0, summary["total_agents_executed"])
	assert.Len(t, body["agent_results"], 5)
}

// ============================================================================
// Health and Stream
// ============================================================================

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})

	w := env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "operational", body["status"])
	assert.Len(t, body["agents_available"], 5)

	w = env.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	info := body["system_info"].(map[string]any)
	assert.Equal(t, 17.0, info["total_sensors"])
	assert.Equal(t, "disabled", body["services"].(map[string]any)["gemini_text"])
}

type countingGauge struct {
	mu   sync.Mutex
	open int
	max  int
}

func (g *countingGauge) Inc() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open++
	if g.open > g.max {
		g.max = g.open
	}
}

func (g *countingGauge) Dec() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open--
}

func TestSensorStream(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})
	gauge := &countingGauge{}
	r := gin.New()
	r.GET("/api/stream/sensors", HandleSensorStream(env.store, env.evaluator, 10*time.Millisecond, nil, gauge))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream/sensors"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		var frame StreamFrame
		require.NoError(t, conn.ReadJSON(&frame))
		assert.Equal(t, "sensor_update", frame.Type)
		assert.Len(t, frame.Data, 17)
	}
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		gauge.mu.Lock()
		defer gauge.mu.Unlock()
		return gauge.open == 0 && gauge.max == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSensorStream_EnforcesOrigins(t *testing.T) {
	env := newTestEnv(t, &mockLLM{})
	r := gin.New()
	r.GET("/ws", HandleSensorStream(env.store, env.evaluator, 10*time.Millisecond, []string{"http://plant.local"}, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"allowed origin", "http://plant.local", true},
		{"no origin header", "", true},
		{"foreign origin", "http://evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if !tt.ok {
				require.Error(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			defer conn.Close()
			var frame StreamFrame
			require.NoError(t, conn.ReadJSON(&frame))
			assert.Equal(t, "sensor_update", frame.Type)
		})
	}

	r = gin.New()
	r.GET("/ws", HandleSensorStream(env.store, env.evaluator, 10*time.Millisecond, []string{"*"}, nil))
	open := httptest.NewServer(r)
	defer open.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(open.URL, "http")+"/ws",
		http.Header{"Origin": []string{"http://anywhere.example"}})
	require.NoError(t, err)
	conn.Close()
}
