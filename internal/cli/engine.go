package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ToolLoop/ToolLoop/internal/agent"
	"github.com/ToolLoop/ToolLoop/internal/config"
	"github.com/ToolLoop/ToolLoop/internal/confirm"
	"github.com/ToolLoop/ToolLoop/internal/dispatch"
	"github.com/ToolLoop/ToolLoop/internal/provider"
	"github.com/ToolLoop/ToolLoop/internal/ratelimit"
	"github.com/ToolLoop/ToolLoop/internal/session"
	"github.com/ToolLoop/ToolLoop/internal/timeline"
	"github.com/ToolLoop/ToolLoop/internal/tools"
	"github.com/ToolLoop/ToolLoop/internal/trace"
)

// maxHistoryMessages bounds how much prior conversation is replayed into a
// new run's context.
const maxHistoryMessages = 40

// engine wires the full agent stack for one CLI process: provider, tools,
// confirmation bridge, dispatcher, rate limiter, sessions, and telemetry.
type engine struct {
	cfg        *config.Config
	provider   provider.LLMProvider
	registry   *tools.Registry
	bridge     *confirm.Bridge
	docs       *dispatch.Documents
	dispatcher *dispatch.Dispatcher
	limiters   *ratelimit.Registry
	limiter    *ratelimit.Limiter
	sessions   *session.Manager
	timeline   *timeline.Service
	tracer     trace.Publisher
	builder    *agent.ContextBuilder
}

func newEngine(cfg *config.Config) (*engine, error) {
	prov, err := provider.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	workspace := cfg.Paths.Workspace
	workDir := func() string { return workspace }

	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewWriteFileTool(workDir))
	registry.Register(tools.NewEditFileTool(workDir))
	registry.Register(tools.NewDeleteFileTool(workDir))
	registry.Register(tools.NewListDirTool())
	registry.Register(tools.NewExecTool(
		time.Duration(cfg.Tools.ExecTimeoutSeconds)*time.Second,
		cfg.Tools.RestrictToWorkDir,
		workspace,
	))

	bridge := confirm.NewBridge(nil)
	bridge.SetNotifier(terminalNotifier(bridge, os.Stdin, os.Stdout))

	docs := dispatch.NewDocuments()
	dispatcher := dispatch.New(registry, nil, bridge, docs, dangerousTools(cfg, registry), dispatch.Events{})

	limiters := ratelimit.NewRegistry()
	limiter, err := limiters.For(cfg.Model.Name, cfg.Limits.MaxRequests, cfg.Limits.Period())
	if err != nil {
		limiters.Close()
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var tl *timeline.Service
	if cfg.Timeline.Enabled {
		tl, err = timeline.NewService(cfg.Timeline.Path)
		if err != nil {
			limiters.Close()
			return nil, fmt.Errorf("timeline: %w", err)
		}
	}

	var tracer trace.Publisher = trace.NoopPublisher{}
	if cfg.Trace.Enabled {
		tracer = trace.NewKafkaPublisher(cfg.Trace.Brokers, cfg.Trace.Topic)
	}

	return &engine{
		cfg:        cfg,
		provider:   prov,
		registry:   registry,
		bridge:     bridge,
		docs:       docs,
		dispatcher: dispatcher,
		limiters:   limiters,
		limiter:    limiter,
		sessions:   session.NewManager(cfg.Paths.Sessions),
		timeline:   tl,
		tracer:     tracer,
		builder:    agent.NewContextBuilder(workspace, registry),
	}, nil
}

// dangerousTools unions the configured dangerous names with every registered
// tool whose declared tier is above read-only.
func dangerousTools(cfg *config.Config, registry *tools.Registry) []string {
	set := make(map[string]bool, len(cfg.Tools.Dangerous))
	for _, name := range cfg.Tools.Dangerous {
		set[name] = true
	}
	for _, tool := range registry.List() {
		if tools.ToolTier(tool) > tools.TierReadOnly {
			set[tool.Name()] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	return names
}

func (e *engine) close() {
	e.limiters.Close()
	if e.timeline != nil {
		e.timeline.Close()
	}
	if e.tracer != nil {
		e.tracer.Close()
	}
}

// run executes one agent run inside the given session and persists the
// result. Cancellation leaves the session unsaved.
func (e *engine) run(ctx context.Context, sess *session.Session, message string, events agent.Events) (*agent.Outcome, error) {
	plan, spec := sess.Documents()
	e.docs.SetPlan(plan)
	e.docs.SetSpecification(spec)

	state := agent.NewState("", e.docs)
	state.Append(e.builder.BuildMessages(sess.GetHistory(maxHistoryMessages), message)...)

	loop := agent.NewLoop(agent.Options{
		Provider:        e.provider,
		Dispatcher:      e.dispatcher,
		Limiter:         e.limiter,
		Registry:        e.registry,
		State:           state,
		Timeline:        e.timeline,
		Tracer:          e.tracer,
		Model:           e.cfg.Model.Name,
		MaxTokens:       e.cfg.Model.MaxTokens,
		Temperature:     e.cfg.Model.Temperature,
		MaxTurns:        e.cfg.Loop.MaxTurns,
		StuckWindow:     e.cfg.Loop.StuckWindow,
		SignatureLength: e.cfg.Loop.SignatureLength,
		Events:          events,
	})

	outcome, err := loop.Run(ctx, message)
	if outcome == nil {
		return nil, err
	}

	sess.AddMessage("user", message)
	sess.AddMessage("assistant", outcome.Answer)
	sess.SetDocuments(e.docs.Plan(), e.docs.Specification())
	if saveErr := e.sessions.Save(sess); saveErr != nil {
		fmt.Printf("Session save warning: %v\n", saveErr)
	}

	return outcome, err
}
