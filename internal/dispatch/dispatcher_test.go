package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ToolLoop/ToolLoop/internal/confirm"
	"github.com/ToolLoop/ToolLoop/internal/tools"
)

// fakeTool records invocations and returns a scripted result.
type fakeTool struct {
	name   string
	result string
	err    error
	panics bool

	mu       sync.Mutex
	calls    int
	lastArgs map[string]any
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake" }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (f *fakeTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastArgs = params
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.result, f.err
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTool) args() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastArgs
}

// autoApprover builds a bridge whose notifier resolves every confirmation
// with a fixed decision.
func autoApprover(allowed bool, modified map[string]any) *confirm.Bridge {
	bridge := confirm.NewBridge(nil)
	bridge.SetNotifier(func(req confirm.Request) {
		go bridge.Resolve(req.ID, allowed, modified)
	})
	return bridge
}

func newTestDispatcher(t *testing.T, tool tools.Tool, dangerous []string, allowed bool, modified map[string]any) *Dispatcher {
	t.Helper()
	reg := tools.NewRegistry()
	if tool != nil {
		reg.Register(tool)
	}
	return New(reg, nil, autoApprover(allowed, modified), NewDocuments(), dangerous, Events{})
}

func TestSanitizeArgsRedactsSensitiveValues(t *testing.T) {
	args := map[string]any{
		"path":        "a.txt",
		"api_key":     "sk-abcdefghijklmnopqrstuvwxyz",
		"password":    "hunter2",
		"GEMINI_TOKEN": "short",
		"file_content": "this is a very long file content body",
		"count":       float64(3),
		"max_tokens":  float64(5),
	}

	got := SanitizeArgs(args)

	if got["path"] != "a.txt" {
		t.Fatalf("path should pass through, got %v", got["path"])
	}
	key := got["api_key"].(string)
	if !strings.HasPrefix(key, "sk-ab") || !strings.HasSuffix(key, "vwxyz") || !strings.Contains(key, "[REDACTED]") {
		t.Fatalf("long sensitive value redaction wrong: %q", key)
	}
	if got["password"] != "[REDACTED]" {
		t.Fatalf("short sensitive value should be fully redacted, got %v", got["password"])
	}
	if got["GEMINI_TOKEN"] != "[REDACTED]" {
		t.Fatalf("key matching should be case-insensitive, got %v", got["GEMINI_TOKEN"])
	}
	if v := got["file_content"].(string); !strings.Contains(v, "[REDACTED]") {
		t.Fatalf("substring key match failed: %q", v)
	}
	if got["max_tokens"] != float64(5) {
		t.Fatalf("non-string sensitive value should pass through, got %v", got["max_tokens"])
	}

	// The execution copy is untouched.
	if args["password"] != "hunter2" {
		t.Fatal("SanitizeArgs mutated the original map")
	}
}

func TestVirtualDocumentReadWrite(t *testing.T) {
	var changed atomic.Int32
	reg := tools.NewRegistry()
	d := New(reg, nil, autoApprover(true, nil), NewDocuments(), []string{"write_file"}, Events{
		DocumentChanged: func(kind DocumentKind, text string) { changed.Add(1) },
	})

	ctx := context.Background()

	out, err := d.Execute(ctx, "read_file", map[string]any{"path": "plan.md"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "plan.md is currently empty." {
		t.Fatalf("empty plan read = %q", out)
	}

	// Virtual writes bypass the dangerous gate even though write_file is dangerous.
	out, err = d.Execute(ctx, "write_file", map[string]any{"path": "plan.md", "content": "step 1"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Successfully updated plan.md") {
		t.Fatalf("plan write result = %q", out)
	}

	out, _ = d.Execute(ctx, "read_file", map[string]any{"path": "plan.md"})
	if out != "step 1" {
		t.Fatalf("plan read after write = %q", out)
	}

	out, _ = d.Execute(ctx, "update_specification", map[string]any{"content": "v2 spec"})
	if !strings.Contains(out, "specification.md") {
		t.Fatalf("specification update result = %q", out)
	}
	if d.Documents().Specification() != "v2 spec" {
		t.Fatalf("specification = %q", d.Documents().Specification())
	}

	if changed.Load() != 2 {
		t.Fatalf("DocumentChanged fired %d times, want 2", changed.Load())
	}
}

func TestDeniedConfirmationSkipsTool(t *testing.T) {
	ft := &fakeTool{name: "delete_file", result: "deleted"}
	d := newTestDispatcher(t, ft, []string{"delete_file"}, false, nil)

	out, err := d.Execute(context.Background(), "delete_file", map[string]any{"path": "a.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "denied") || !strings.Contains(out, "delete_file") {
		t.Fatalf("denial message = %q", out)
	}
	if ft.callCount() != 0 {
		t.Fatal("denied tool must never execute")
	}
}

func TestApprovedWithModifiedArgs(t *testing.T) {
	ft := &fakeTool{name: "exec", result: "ok"}
	d := newTestDispatcher(t, ft, []string{"exec"}, true, map[string]any{"command": "ls -la"})

	out, err := d.Execute(context.Background(), "exec", map[string]any{"command": "rm -rf /"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" {
		t.Fatalf("result = %q", out)
	}
	if got := ft.args()["command"]; got != "ls -la" {
		t.Fatalf("tool should run with modified args, got %v", got)
	}
}

func TestConfirmationSerializedAcrossConcurrentCalls(t *testing.T) {
	ft := &fakeTool{name: "exec", result: "ok"}
	reg := tools.NewRegistry()
	reg.Register(ft)

	bridge := confirm.NewBridge(nil)
	var inFlight, maxInFlight atomic.Int32
	bridge.SetNotifier(func(req confirm.Request) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		go func() {
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			_ = bridge.Resolve(req.ID, true, nil)
		}()
	})

	d := New(reg, nil, bridge, NewDocuments(), []string{"exec"}, Events{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Execute(context.Background(), "exec", map[string]any{"command": "true"}); err != nil {
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if ft.callCount() != 4 {
		t.Fatalf("all approved calls should run, got %d", ft.callCount())
	}
	if maxInFlight.Load() > 1 {
		t.Fatalf("at most one confirmation may be outstanding, saw %d", maxInFlight.Load())
	}
}

func TestConfirmationWaitCancellable(t *testing.T) {
	ft := &fakeTool{name: "exec", result: "ok"}
	reg := tools.NewRegistry()
	reg.Register(ft)
	bridge := confirm.NewBridge(func(req confirm.Request) {}) // never resolves
	d := New(reg, nil, bridge, NewDocuments(), []string{"exec"}, Events{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Execute(ctx, "exec", map[string]any{"command": "true"})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled confirmation wait did not unwind")
	}
	if ft.callCount() != 0 {
		t.Fatal("cancelled call must not execute")
	}
}

func TestUnknownToolReturnsNotFound(t *testing.T) {
	d := newTestDispatcher(t, &fakeTool{name: "known"}, nil, true, nil)

	out, err := d.Execute(context.Background(), "bogus", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "Error: Tool 'bogus' not found." {
		t.Fatalf("not-found message = %q", out)
	}
}

// extFunc adapts a function to the Extension interface.
type extFunc struct {
	names map[string]bool
	fn    func(name string, args map[string]any) (string, error)
}

func (e *extFunc) Has(name string) bool { return e.names[name] }
func (e *extFunc) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	return e.fn(name, args)
}

func TestExtensionFallback(t *testing.T) {
	reg := tools.NewRegistry()
	ext := &extFunc{
		names: map[string]bool{"plugin_tool": true},
		fn: func(name string, args map[string]any) (string, error) {
			return "plugin says hi", nil
		},
	}
	d := New(reg, ext, autoApprover(true, nil), NewDocuments(), nil, Events{})

	out, err := d.Execute(context.Background(), "plugin_tool", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != "plugin says hi" {
		t.Fatalf("plugin result = %q", out)
	}
}

func TestToolErrorFoldedIntoResult(t *testing.T) {
	ft := &fakeTool{name: "flaky", err: fmt.Errorf("disk on fire")}
	d := newTestDispatcher(t, ft, nil, true, nil)

	out, err := d.Execute(context.Background(), "flaky", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Error in flaky") || !strings.Contains(out, "disk on fire") {
		t.Fatalf("error result = %q", out)
	}
}

func TestToolPanicRecovered(t *testing.T) {
	ft := &fakeTool{name: "crasher", panics: true}
	d := newTestDispatcher(t, ft, nil, true, nil)

	out, err := d.Execute(context.Background(), "crasher", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Error in crasher") || !strings.Contains(out, "boom") {
		t.Fatalf("panic result = %q", out)
	}
}
