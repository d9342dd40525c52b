// Package agent implements the core agent loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ToolLoop/ToolLoop/internal/dispatch"
	"github.com/ToolLoop/ToolLoop/internal/provider"
	"github.com/ToolLoop/ToolLoop/internal/ratelimit"
	"github.com/ToolLoop/ToolLoop/internal/timeline"
	"github.com/ToolLoop/ToolLoop/internal/tools"
	"github.com/ToolLoop/ToolLoop/internal/trace"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone     Status = "done"
	StatusStuck    Status = "stuck"
	StatusMaxTurns Status = "max_turns"
	StatusError    Status = "error"
)

const stuckMessage = "[System: Agent stuck in repetitive loop. Process stopped.]"

// Progress tags recorded per tool result.
const (
	tagProgress   = "progress_made"
	tagNoProgress = "no_progress"
)

// Outcome is the single well-formed result of a run. Cancellation produces
// no Outcome; Run returns the context error instead.
type Outcome struct {
	Status Status
	Answer string
	Turns  int
}

// Events carries the loop's fire-and-forget observability callbacks. Nil
// callbacks are skipped.
type Events struct {
	// Status reports short human-readable progress lines.
	Status func(text string)
	// Usage fires once per model call with that call's token usage.
	Usage func(usage provider.Usage)
	// RateLimit fires when the provider reports quota telemetry.
	RateLimit func(remaining, limit int)
	// PlanUpdated fires when a turn's tool calls changed the virtual plan.
	PlanUpdated func(text string)
	// SpecificationUpdated fires when a turn changed the virtual specification.
	SpecificationUpdated func(text string)
}

func (e Events) status(text string) {
	if e.Status != nil {
		e.Status(text)
	}
}

// Options configures a Loop.
type Options struct {
	Provider   provider.LLMProvider
	Dispatcher *dispatch.Dispatcher
	Limiter    *ratelimit.Limiter
	Registry   *tools.Registry
	State      *State
	Timeline   *timeline.Service // optional
	Tracer     trace.Publisher   // optional

	Model       string
	MaxTokens   int
	Temperature float64

	MaxTurns        int
	StuckWindow     int
	SignatureLength int

	Events Events
}

// Loop drives one session's turn cycle: model call, concurrent tool
// dispatch, progress tracking, repeat. A Loop is not safe for concurrent
// Run calls; one session runs one turn at a time.
type Loop struct {
	provider   provider.LLMProvider
	dispatcher *dispatch.Dispatcher
	limiter    *ratelimit.Limiter
	registry   *tools.Registry
	state      *State
	timeline   *timeline.Service
	tracer     trace.Publisher

	model       string
	maxTokens   int
	temperature float64

	maxTurns        int
	stuckWindow     int
	signatureLength int

	events Events

	progress      []string
	lastSignature string
}

// NewLoop creates a new agent loop.
func NewLoop(opts Options) *Loop {
	maxTurns := opts.MaxTurns
	if maxTurns == 0 {
		maxTurns = 20
	}
	stuckWindow := opts.StuckWindow
	if stuckWindow == 0 {
		stuckWindow = 3
	}
	sigLen := opts.SignatureLength
	if sigLen == 0 {
		sigLen = 50
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = trace.NoopPublisher{}
	}
	state := opts.State
	if state == nil {
		state = NewState("", opts.Dispatcher.Documents())
	}

	return &Loop{
		provider:        opts.Provider,
		dispatcher:      opts.Dispatcher,
		limiter:         opts.Limiter,
		registry:        opts.Registry,
		state:           state,
		timeline:        opts.Timeline,
		tracer:          tracer,
		model:           opts.Model,
		maxTokens:       maxTokens,
		temperature:     temperature,
		maxTurns:        maxTurns,
		stuckWindow:     stuckWindow,
		signatureLength: sigLen,
		events:          opts.Events,
	}
}

// State returns the loop's conversation state.
func (l *Loop) State() *State {
	return l.state
}

// Run executes the turn cycle until the model produces a final answer, the
// loop gets stuck, the turn budget runs out, a model error occurs, or ctx is
// cancelled. Cancellation returns (nil, ctx.Err()) with no outcome.
func (l *Loop) Run(ctx context.Context, userMessage string) (*Outcome, error) {
	runID := uuid.NewString()
	if l.timeline != nil {
		if err := l.timeline.StartRun(runID, l.model); err != nil {
			slog.Warn("Failed to record run start", "run_id", runID, "error", err)
		}
	}

	l.state.Append(provider.Message{Role: "user", Content: userMessage})
	toolDefs := l.buildToolDefinitions()

	finalAnswer := ""
	done := false
	stuck := false
	turn := 0

	for !done && turn < l.maxTurns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		turn++
		l.events.status(fmt.Sprintf("Thinking (Turn %d/%d)...", turn, l.maxTurns))

		// Suspension point: wait for a rate-limit token.
		if err := l.limiter.AcquireCtx(ctx); err != nil {
			return nil, err
		}

		modelStart := time.Now()
		resp, err := l.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    l.state.Messages(),
			Tools:       toolDefs,
			Model:       l.model,
			MaxTokens:   l.maxTokens,
			Temperature: l.temperature,
		})
		modelDuration := time.Since(modelStart)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			return l.fail(ctx, runID, turn, err)
		}

		l.recordModelCall(ctx, runID, turn, resp, modelDuration)

		if len(resp.ToolCalls) == 0 {
			finalAnswer = resp.Content
			if finalAnswer == "" {
				finalAnswer = "(Task completed silently)"
			}
			done = true
			continue
		}

		l.state.Append(provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		planBefore := l.state.Documents().Plan()
		specBefore := l.state.Documents().Specification()

		results, err := l.dispatchAll(ctx, runID, turn, resp.ToolCalls)
		if err != nil {
			return nil, err
		}

		l.notifyDocumentChanges(planBefore, specBefore)

		for _, r := range results {
			l.recordProgress(r.call.Name, r.result)
		}

		if l.isStuck() {
			slog.Warn("Repetitive tool results, stopping run", "run_id", runID, "turn", turn)
			finalAnswer = stuckMessage
			stuck = true
			done = true
			continue
		}

		// All of a turn's results land in the conversation as one unit.
		msgs := make([]provider.Message, len(results))
		for i, r := range results {
			msgs[i] = provider.Message{
				Role:       "tool",
				Content:    r.result,
				ToolCallID: r.call.ID,
			}
		}
		l.state.Append(msgs...)
		l.events.status(fmt.Sprintf("Processing results (Turn %d/%d)...", turn, l.maxTurns))
	}

	status := StatusDone
	if stuck {
		status = StatusStuck
	}
	if turn >= l.maxTurns {
		note := fmt.Sprintf("[System: Max agent turns reached (%d). Process stopped.]", l.maxTurns)
		if finalAnswer != "" {
			finalAnswer = finalAnswer + "\n\n" + note
		} else {
			finalAnswer = note
		}
		if !done {
			status = StatusMaxTurns
		}
	}

	l.finish(ctx, runID, string(status), finalAnswer, turn)
	return &Outcome{Status: status, Answer: finalAnswer, Turns: turn}, nil
}

// fail labels a model error per its classification and terminates the run.
func (l *Loop) fail(ctx context.Context, runID string, turn int, err error) (*Outcome, error) {
	var label string
	switch {
	case errors.Is(err, provider.ErrRateLimited):
		label = fmt.Sprintf("Rate limit exceeded. Please wait. Details: %v", err)
	case errors.Is(err, provider.ErrAuth):
		label = fmt.Sprintf("Authentication error. Check API key. Details: %v", err)
	case errors.Is(err, provider.ErrSafetyBlocked):
		label = "Response blocked by safety filters."
	case errors.Is(err, provider.ErrEmptyResponse):
		label = fmt.Sprintf("API returned an empty response. Details: %v", err)
	default:
		label = fmt.Sprintf("An unexpected error occurred: %v", err)
	}
	slog.Error("Model call failed", "run_id", runID, "turn", turn, "error", err)
	l.finish(ctx, runID, string(StatusError), label, turn)
	return &Outcome{Status: StatusError, Answer: label, Turns: turn}, err
}

type toolResult struct {
	call   provider.ToolCall
	result string
}

// dispatchAll runs a turn's tool calls concurrently and pairs each result
// with its originating call, preserving request order.
func (l *Loop) dispatchAll(ctx context.Context, runID string, turn int, calls []provider.ToolCall) ([]toolResult, error) {
	results := make([]toolResult, len(calls))
	errs := make([]error, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		wg.Add(1)
		go func(i int, tc provider.ToolCall) {
			defer wg.Done()
			start := time.Now()
			out, err := l.dispatcher.Execute(ctx, tc.Name, tc.Arguments)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = toolResult{call: tc, result: out}
			l.recordToolCall(ctx, runID, turn, tc, out, time.Since(start))
		}(i, tc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// recordProgress appends a progress tag for one tool result. The signature
// is the tool name plus a truncated prefix of the output; identical
// consecutive signatures count as no progress.
func (l *Loop) recordProgress(toolName, result string) {
	sig := toolName + ":" + truncateStr(result, l.signatureLength)
	if sig == l.lastSignature {
		l.progress = append(l.progress, tagNoProgress)
	} else {
		l.progress = append(l.progress, tagProgress)
	}
	l.lastSignature = sig
}

// isStuck reports whether the trailing window of progress tags is all
// no-progress.
func (l *Loop) isStuck() bool {
	if len(l.progress) < l.stuckWindow {
		return false
	}
	for _, tag := range l.progress[len(l.progress)-l.stuckWindow:] {
		if tag != tagNoProgress {
			return false
		}
	}
	return true
}

// notifyDocumentChanges emits plan/specification events when a turn's tool
// calls changed the virtual documents.
func (l *Loop) notifyDocumentChanges(planBefore, specBefore string) {
	docs := l.state.Documents()
	if plan := docs.Plan(); plan != planBefore && l.events.PlanUpdated != nil {
		l.events.PlanUpdated(plan)
	}
	if spec := docs.Specification(); spec != specBefore && l.events.SpecificationUpdated != nil {
		l.events.SpecificationUpdated(spec)
	}
}

// recordModelCall forwards usage telemetry and persists the turn.
func (l *Loop) recordModelCall(ctx context.Context, runID string, turn int, resp *provider.ChatResponse, duration time.Duration) {
	if l.events.Usage != nil {
		l.events.Usage(resp.Usage)
	}
	if resp.RateLimit != nil {
		l.limiter.UpdateLimits(resp.RateLimit.Remaining, resp.RateLimit.Limit)
		if l.events.RateLimit != nil {
			l.events.RateLimit(resp.RateLimit.Remaining, resp.RateLimit.Limit)
		}
	}

	if l.timeline != nil {
		if err := l.timeline.RecordTurn(timeline.TurnRecord{
			RunID:            runID,
			Turn:             turn,
			FinishReason:     resp.FinishReason,
			ToolCalls:        len(resp.ToolCalls),
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
			Duration:         duration,
		}); err != nil {
			slog.Warn("Failed to record turn", "run_id", runID, "turn", turn, "error", err)
		}
	}

	content := fmt.Sprintf("model=%s tokens=%d duration=%dms", l.model, resp.Usage.TotalTokens, duration.Milliseconds())
	if len(resp.ToolCalls) > 0 {
		names := make([]string, len(resp.ToolCalls))
		for i, tc := range resp.ToolCalls {
			names[i] = tc.Name
		}
		content += fmt.Sprintf(" tools=%s", strings.Join(names, ","))
	}
	go l.tracer.Publish(context.WithoutCancel(ctx), trace.Span{
		RunID:      runID,
		SpanType:   trace.SpanModel,
		Title:      fmt.Sprintf("Model call: %s", l.model),
		Content:    content,
		StartedAt:  time.Now().Add(-duration),
		EndedAt:    time.Now(),
		DurationMS: duration.Milliseconds(),
	})
}

// recordToolCall persists one tool span.
func (l *Loop) recordToolCall(ctx context.Context, runID string, turn int, tc provider.ToolCall, result string, duration time.Duration) {
	ok := !strings.HasPrefix(result, "Error")
	if l.timeline != nil {
		if err := l.timeline.RecordToolSpan(timeline.ToolSpanRecord{
			RunID:     runID,
			Turn:      turn,
			CallID:    tc.ID,
			Tool:      tc.Name,
			OK:        ok,
			ResultLen: len(result),
			Duration:  duration,
		}); err != nil {
			slog.Warn("Failed to record tool span", "run_id", runID, "tool", tc.Name, "error", err)
		}
	}

	go l.tracer.Publish(context.WithoutCancel(ctx), trace.Span{
		RunID:      runID,
		SpanType:   trace.SpanTool,
		Title:      fmt.Sprintf("Tool: %s", tc.Name),
		Content:    fmt.Sprintf("tool=%s ok=%v duration=%dms result_len=%d", tc.Name, ok, duration.Milliseconds(), len(result)),
		StartedAt:  time.Now().Add(-duration),
		EndedAt:    time.Now(),
		DurationMS: duration.Milliseconds(),
	})
}

// finish records the terminal outcome.
func (l *Loop) finish(ctx context.Context, runID, status, answer string, turns int) {
	if l.timeline != nil {
		if err := l.timeline.CompleteRun(runID, status, answer, turns); err != nil {
			slog.Warn("Failed to record run completion", "run_id", runID, "error", err)
		}
	}
	go l.tracer.Publish(context.WithoutCancel(ctx), trace.Span{
		RunID:      runID,
		SpanType:   trace.SpanOutcome,
		Title:      fmt.Sprintf("Run %s", status),
		Content:    truncateStr(answer, 10240),
		StartedAt:  time.Now(),
		EndedAt:    time.Now(),
		DurationMS: 0,
	})
	slog.Info("Run finished", "run_id", runID, "status", status, "turns", turns)
}

// buildToolDefinitions converts the registry plus the virtual-document
// update tools into provider declarations.
func (l *Loop) buildToolDefinitions() []provider.ToolDefinition {
	toolList := l.registry.List()
	defs := make([]provider.ToolDefinition, 0, len(toolList)+2)

	for _, tool := range toolList {
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}

	return append(defs, virtualToolDefinitions()...)
}

// virtualToolDefinitions declares the session-document update tools, which
// have no registry entry because the dispatcher handles them directly.
func virtualToolDefinitions() []provider.ToolDefinition {
	contentSchema := func(desc string) map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": desc,
				},
			},
			"required": []string{"content"},
		}
	}
	return []provider.ToolDefinition{
		{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        "update_plan",
				Description: "Replace the session plan document (" + dispatch.PlanFile + ") with new content.",
				Parameters:  contentSchema("The full new plan text"),
			},
		},
		{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        "update_specification",
				Description: "Replace the session specification document (" + dispatch.SpecificationFile + ") with new content.",
				Parameters:  contentSchema("The full new specification text"),
			},
		},
	}
}

// truncateStr returns s trimmed to maxLen characters.
func truncateStr(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
