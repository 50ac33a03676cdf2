// Copyright (C) 2025 The cement-ai Authors (github.com/xrvnd/cement-ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/> for the full license text.

package agents

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/xrvnd/cement-ai/services/llm"
	"github.com/xrvnd/cement-ai/services/twin/prompts"
	"github.com/xrvnd/cement-ai/services/twin/sensors"
)

var runnerTracer = otel.Tracer("cementtwin.agents.runner")

// TaskLogSize bounds the number of retained task results.
const TaskLogSize = 100

// Status is the outcome of one agent execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one agent task.
type Result struct {
	TaskID          string           `json:"task_id"`
	AgentType       Kind             `json:"agent_type"`
	Specialization  string           `json:"specialization"`
	Task            string           `json:"task_description"`
	Analysis        string           `json:"analysis,omitempty"`
	Findings        []string         `json:"tool_findings"`
	Recommendations []Recommendation `json:"recommendations"`
	Status          Status           `json:"status"`
	Error           string           `json:"error,omitempty"`
	ExecutionTime   time.Time        `json:"execution_time"`
	DurationMillis  int64            `json:"duration_ms"`
}

// OptimizationSummary counts a RunAll outcome.
type OptimizationSummary struct {
	TotalAgentsExecuted  int `json:"total_agents_executed"`
	TotalRecommendations int `json:"total_recommendations"`
	CriticalActions      int `json:"critical_actions"`
	MediumPriority       int `json:"medium_priority"`
}

// Prioritized buckets combined recommendations.
type Prioritized struct {
	Critical []Recommendation `json:"critical"`
	Medium   []Recommendation `json:"medium"`
}

// Optimization is the combined result of running every agent.
type Optimization struct {
	Summary      OptimizationSummary `json:"optimization_summary"`
	AgentResults map[Kind]Result     `json:"agent_results"`
	Prioritized  Prioritized         `json:"prioritized_recommendations"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Runner executes agents and records their results.
//
// # Description
//
// Execute renders the agent prompt with tool findings and calls the LLM.
// An LLM failure produces a failed Result rather than an error, so one bad
// call never fails a RunAll. The task log keeps the newest TaskLogSize
// results.
//
// # Thread Safety
//
// Safe for concurrent use.
type Runner struct {
	registry *Registry
	builder  *prompts.Builder
	client   llm.LLMClient
	params   llm.GenerationParams
	now      func() time.Time

	mu    sync.Mutex
	log   []Result
	byID  map[string]int
	start int
}

// NewRunner returns a runner over registry.
func NewRunner(registry *Registry, builder *prompts.Builder, client llm.LLMClient) *Runner {
	temp := float32(0.3)
	return &Runner{
		registry: registry,
		builder:  builder,
		client:   client,
		params:   llm.GenerationParams{Temperature: &temp},
		now:      time.Now,
		byID:     make(map[string]int),
	}
}

// Registry returns the dispatch table.
func (r *Runner) Registry() *Registry { return r.registry }

// Execute runs one agent task.
//
// # Inputs
//
//   - ctx: Context for cancellation and tracing.
//   - kind: Agent to run.
//   - task: Task description; empty uses a default for the kind.
//   - snap: Sensor snapshot the agent reasons over.
//
// # Outputs
//
//   - Result: Completed or failed result, also recorded in the task log.
//   - error: ErrUnknownAgent or a prompt render failure.
func (r *Runner) Execute(ctx context.Context, kind Kind, task string, snap sensors.Snapshot) (Result, error) {
	ctx, span := runnerTracer.Start(ctx, "Runner.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("agent.kind", string(kind)))

	agent, err := r.registry.Get(kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown agent")
		return Result{}, err
	}
	if task == "" {
		task = fmt.Sprintf("Analyze and optimize %s operations", kind)
	}

	started := r.now()
	findings := make([]string, 0, len(agent.Tools()))
	for _, tool := range agent.Tools() {
		findings = append(findings, tool.Name+": "+tool.Run(snap))
	}

	prompt, err := r.builder.Build(prompts.KindAgent, prompts.Data{
		Readings:       snap,
		AgentKind:      string(kind),
		Specialization: agent.Specialization(),
		Task:           task,
		Findings:       findings,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render agent prompt failed")
		return Result{}, fmt.Errorf("render agent prompt: %w", err)
	}

	res := Result{
		TaskID:          fmt.Sprintf("%s-%s", kind, uuid.NewString()[:8]),
		AgentType:       kind,
		Specialization:  agent.Specialization(),
		Task:            task,
		Findings:        findings,
		Recommendations: agent.Recommend(snap),
		ExecutionTime:   started,
	}

	analysis, err := r.client.Generate(ctx, prompt, r.params)
	if err != nil {
		slog.Error("Agent task execution failed", "agent", kind, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		res.Status = StatusFailed
		res.Error = err.Error()
	} else {
		res.Status = StatusCompleted
		res.Analysis = analysis
	}
	res.DurationMillis = r.now().Sub(started).Milliseconds()

	r.record(res)
	span.SetAttributes(attribute.String("agent.task_id", res.TaskID), attribute.String("agent.status", string(res.Status)))
	return res, nil
}

// RunAll executes every registered agent concurrently and prioritizes the
// combined recommendations.
func (r *Runner) RunAll(ctx context.Context, snap sensors.Snapshot) (Optimization, error) {
	ctx, span := runnerTracer.Start(ctx, "Runner.RunAll")
	defer span.End()

	kinds := r.registry.Kinds()
	results := make([]Result, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			res, err := r.Execute(gctx, kind, fmt.Sprintf("Comprehensive %s optimization analysis", kind), snap)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "agent run failed")
		return Optimization{}, fmt.Errorf("run agents: %w", err)
	}

	opt := Optimization{
		AgentResults: make(map[Kind]Result, len(results)),
		Prioritized:  Prioritized{Critical: []Recommendation{}, Medium: []Recommendation{}},
		Timestamp:    r.now(),
	}
	for i, res := range results {
		opt.AgentResults[kinds[i]] = res
		for _, rec := range res.Recommendations {
			opt.Summary.TotalRecommendations++
			switch rec.Priority {
			case PriorityHigh:
				opt.Prioritized.Critical = append(opt.Prioritized.Critical, rec)
			case PriorityMedium:
				opt.Prioritized.Medium = append(opt.Prioritized.Medium, rec)
			}
		}
	}
	opt.Summary.TotalAgentsExecuted = len(results)
	opt.Summary.CriticalActions = len(opt.Prioritized.Critical)
	opt.Summary.MediumPriority = len(opt.Prioritized.Medium)
	return opt, nil
}

// Task returns a logged result by id.
func (r *Runner) Task(id string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return Result{}, false
	}
	return r.log[i], true
}

// Tasks returns the logged results, oldest first.
func (r *Runner) Tasks() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, 0, len(r.log))
	out = append(out, r.log[r.start:]...)
	out = append(out, r.log[:r.start]...)
	return out
}

// record appends res, overwriting the oldest entry once the log is full.
func (r *Runner) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.log) < TaskLogSize {
		r.byID[res.TaskID] = len(r.log)
		r.log = append(r.log, res)
		return
	}
	delete(r.byID, r.log[r.start].TaskID)
	r.log[r.start] = res
	r.byID[res.TaskID] = r.start
	r.start = (r.start + 1) % TaskLogSize
}
