// Package dispatch resolves tool calls to their handlers and gates dangerous
// tools behind interactive confirmation.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ToolLoop/ToolLoop/internal/confirm"
	"github.com/ToolLoop/ToolLoop/internal/tools"
)

// Extension resolves tool names that are not in the built-in registry, for
// example plugin-provided tools.
type Extension interface {
	Has(name string) bool
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Events carries the dispatcher's fire-and-forget observability callbacks.
// Nil callbacks are skipped; none of them affect the dispatch result.
type Events struct {
	// Status reports short human-readable progress lines.
	Status func(text string)
	// DocumentChanged fires after a virtual document write.
	DocumentChanged func(kind DocumentKind, text string)
	// ToolFinished fires once per registry/extension execution.
	ToolFinished func(name string, ok bool)
}

func (e Events) status(text string) {
	if e.Status != nil {
		e.Status(text)
	}
}

func (e Events) documentChanged(kind DocumentKind, text string) {
	if e.DocumentChanged != nil {
		e.DocumentChanged(kind, text)
	}
}

func (e Events) toolFinished(name string, ok bool) {
	if e.ToolFinished != nil {
		e.ToolFinished(name, ok)
	}
}

// Dispatcher executes tool calls. Safe for concurrent use: one Execute per
// parallel tool call in a turn. Confirmations are serialized by the bridge's
// single slot, so only one prompt is visible at a time.
type Dispatcher struct {
	registry  *tools.Registry
	ext       Extension
	bridge    *confirm.Bridge
	dangerous map[string]bool
	docs      *Documents
	events    Events
}

// New creates a dispatcher. ext may be nil; dangerous lists the tool names
// that require confirmation before execution.
func New(registry *tools.Registry, ext Extension, bridge *confirm.Bridge, docs *Documents, dangerous []string, events Events) *Dispatcher {
	set := make(map[string]bool, len(dangerous))
	for _, name := range dangerous {
		set[name] = true
	}
	if docs == nil {
		docs = NewDocuments()
	}
	return &Dispatcher{
		registry:  registry,
		ext:       ext,
		bridge:    bridge,
		dangerous: set,
		docs:      docs,
		events:    events,
	}
}

// Documents returns the session's virtual document set.
func (d *Dispatcher) Documents() *Documents {
	return d.docs
}

// targetKind tags the resolved variant of a tool call.
type targetKind int

const (
	targetRegistered targetKind = iota
	targetDocRead
	targetDocWrite
)

type target struct {
	kind targetKind
	doc  DocumentKind
}

// resolve classifies a call once, before dispatch. Virtual-document calls
// bypass both the registry and the dangerous-tool gate.
func (d *Dispatcher) resolve(name string, args map[string]any) target {
	switch name {
	case "update_plan":
		return target{kind: targetDocWrite, doc: DocPlan}
	case "update_specification":
		return target{kind: targetDocWrite, doc: DocSpecification}
	case "read_file":
		if kind, ok := documentKind(tools.GetString(args, "path", "")); ok {
			return target{kind: targetDocRead, doc: kind}
		}
	case "write_file":
		if kind, ok := documentKind(tools.GetString(args, "path", "")); ok {
			return target{kind: targetDocWrite, doc: kind}
		}
	}
	return target{kind: targetRegistered}
}

func documentKind(path string) (DocumentKind, bool) {
	switch path {
	case PlanFile:
		return DocPlan, true
	case SpecificationFile:
		return DocSpecification, true
	}
	return 0, false
}

// Execute runs one tool call and returns its result string. Tool failures
// are folded into the result, never returned as errors; the error return is
// reserved for context cancellation during a confirmation wait.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	sanitized := SanitizeArgs(args)

	t := d.resolve(name, args)
	if t.kind != targetRegistered {
		return d.executeVirtual(t, args), nil
	}

	if d.dangerous[name] {
		decision, err := d.bridge.Request(ctx, name, args)
		if err != nil {
			return "", err
		}
		if !decision.Allowed {
			d.events.status(fmt.Sprintf("Denied: %s", name))
			slog.Info("Tool execution denied by user", "tool", name)
			return fmt.Sprintf("Error: User denied execution of '%s'.", name), nil
		}
		if decision.ModifiedArgs != nil {
			args = decision.ModifiedArgs
			sanitized = SanitizeArgs(args)
			slog.Info("Tool arguments modified by user", "tool", name)
		}
	}

	d.events.status(fmt.Sprintf("Executing: %s...", name))
	slog.Info("Executing tool", "tool", name, "args", formatArgs(sanitized))

	result, ok := d.invoke(ctx, name, args)
	d.events.toolFinished(name, ok)
	if ok {
		d.events.status(fmt.Sprintf("Completed: %s", name))
	} else {
		d.events.status(fmt.Sprintf("Failed: %s", name))
	}
	return result, nil
}

// invoke runs the registry or extension tool, converting panics and errors
// into tool-output strings.
func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) (result string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", name, "panic", r)
			result = fmt.Sprintf("Error in %s: %v", name, r)
			ok = false
		}
	}()

	if tool, found := d.registry.Get(name); found {
		out, err := tool.Execute(ctx, args)
		if err != nil {
			slog.Error("Tool execution failed", "tool", name, "error", err)
			return fmt.Sprintf("Error in %s: %v", name, err), false
		}
		return out, true
	}

	if d.ext != nil && d.ext.Has(name) {
		out, err := d.ext.Execute(ctx, name, args)
		if err != nil {
			slog.Error("Plugin tool execution failed", "tool", name, "error", err)
			return fmt.Sprintf("Error in %s: %v", name, err), false
		}
		return out, true
	}

	return fmt.Sprintf("Error: Tool '%s' not found.", name), false
}

// executeVirtual handles plan/specification reads and writes against the
// session documents.
func (d *Dispatcher) executeVirtual(t target, args map[string]any) string {
	if t.kind == targetDocRead {
		d.events.status(fmt.Sprintf("Reading virtual %s", t.doc))
		text := d.docs.Get(t.doc)
		if text == "" {
			return fmt.Sprintf("%s is currently empty.", t.doc)
		}
		return text
	}

	content := tools.GetString(args, "content", "")
	d.docs.Set(t.doc, content)
	d.events.status(fmt.Sprintf("Updated virtual %s", t.doc))
	d.events.documentChanged(t.doc, content)
	return fmt.Sprintf("Successfully updated %s in session context.", t.doc)
}

// sensitiveKeys are substrings that mark an argument as sensitive for
// logging. Matching is case-insensitive.
var sensitiveKeys = []string{"api_key", "password", "token", "secret", "content"}

// SanitizeArgs returns a copy of args safe for logging and telemetry. The
// original map is never modified and is the one used for execution.
func SanitizeArgs(args map[string]any) map[string]any {
	sanitized := make(map[string]any, len(args))
	for key, value := range args {
		keyLower := strings.ToLower(key)
		sensitive := false
		for _, sk := range sensitiveKeys {
			if strings.Contains(keyLower, sk) {
				sensitive = true
				break
			}
		}
		if !sensitive {
			sanitized[key] = value
			continue
		}
		s, isString := value.(string)
		if !isString {
			sanitized[key] = value
			continue
		}
		if len(s) > 20 {
			sanitized[key] = fmt.Sprintf("%s...[REDACTED]...%s", s[:5], s[len(s)-5:])
		} else {
			sanitized[key] = "[REDACTED]"
		}
	}
	return sanitized
}

func formatArgs(args map[string]any) string {
	b, err := json.Marshal(args)
	if err != nil {
		return "{...}"
	}
	return string(b)
}
