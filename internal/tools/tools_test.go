package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(NewReadFileTool())

	if _, ok := r.Get("read_file"); !ok {
		t.Fatal("expected read_file to be registered")
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected nonexistent tool lookup to fail")
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(r.List()))
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Execute(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error should name the tool: %v", err)
	}
}

func TestToolTier(t *testing.T) {
	if got := ToolTier(NewReadFileTool()); got != TierReadOnly {
		t.Fatalf("read_file tier = %d, want %d", got, TierReadOnly)
	}
	if got := ToolTier(NewDeleteFileTool(nil)); got != TierHighRisk {
		t.Fatalf("delete_file tier = %d, want %d", got, TierHighRisk)
	}
	if got := ToolTier(NewExecTool(0, false, "")); got != TierHighRisk {
		t.Fatalf("exec tier = %d, want %d", got, TierHighRisk)
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]any{
		"str":   "value",
		"num":   float64(42),
		"flag":  true,
		"wrong": 123,
	}

	if got := GetString(params, "str", "d"); got != "value" {
		t.Fatalf("GetString = %q", got)
	}
	if got := GetString(params, "wrong", "d"); got != "d" {
		t.Fatalf("GetString on non-string = %q, want default", got)
	}
	if got := GetInt(params, "num", 0); got != 42 {
		t.Fatalf("GetInt = %d", got)
	}
	if got := GetBool(params, "flag", false); !got {
		t.Fatal("GetBool = false, want true")
	}
	if got := GetBool(params, "absent", true); !got {
		t.Fatal("GetBool default not applied")
	}
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewReadFileTool()
	out, err := tool.Execute(context.Background(), map[string]any{"path": path})
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Fatalf("read content = %q", out)
	}

	out, _ = tool.Execute(context.Background(), map[string]any{"path": filepath.Join(dir, "gone.txt")})
	if !strings.Contains(out, "file not found") {
		t.Fatalf("missing file result = %q", out)
	}
}

func TestWriteFileToolRestrictedToWorkspace(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteFileTool(func() string { return dir })

	out, err := tool.Execute(context.Background(), map[string]any{
		"path":    filepath.Join(dir, "sub", "a.txt"),
		"content": "data",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Successfully wrote") {
		t.Fatalf("write result = %q", out)
	}

	out, _ = tool.Execute(context.Background(), map[string]any{
		"path":    "/tmp/outside-of-root.txt",
		"content": "data",
	})
	if !strings.Contains(out, "outside workspace") {
		t.Fatalf("out-of-root write should be refused, got %q", out)
	}
}

func TestEditFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "code.go")
	if err := os.WriteFile(path, []byte("alpha beta gamma"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewEditFileTool(func() string { return dir })
	out, err := tool.Execute(context.Background(), map[string]any{
		"path":     path,
		"old_text": "beta",
		"new_text": "delta",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Successfully edited") {
		t.Fatalf("edit result = %q", out)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "alpha delta gamma" {
		t.Fatalf("file content after edit = %q", content)
	}

	out, _ = tool.Execute(context.Background(), map[string]any{
		"path":     path,
		"old_text": "not-present",
		"new_text": "x",
	})
	if !strings.Contains(out, "text not found") {
		t.Fatalf("missing old_text result = %q", out)
	}
}

func TestDeleteFileTool(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doomed.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewDeleteFileTool(func() string { return dir })
	out, err := tool.Execute(context.Background(), map[string]any{"path": path})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Successfully deleted") {
		t.Fatalf("delete result = %q", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file should be gone")
	}

	out, _ = tool.Execute(context.Background(), map[string]any{"path": dir})
	if !strings.Contains(out, "is a directory") {
		t.Fatalf("directory delete should be refused, got %q", out)
	}
}

func TestListDirTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	tool := NewListDirTool()
	out, err := tool.Execute(context.Background(), map[string]any{"path": dir})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "[FILE] f.txt") || !strings.Contains(out, "[DIR]  sub/") {
		t.Fatalf("listing = %q", out)
	}
}

func TestExecToolRunsCommand(t *testing.T) {
	tool := NewExecTool(5*time.Second, false, "")
	out, err := tool.Execute(context.Background(), map[string]any{"command": "echo ok"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "ok" {
		t.Fatalf("exec output = %q", out)
	}
}

func TestExecToolDenyPatterns(t *testing.T) {
	tool := NewExecTool(5*time.Second, false, "")
	for _, cmd := range []string{"rm -rf /", "mkfs /dev/sda", "shutdown now"} {
		out, err := tool.Execute(context.Background(), map[string]any{"command": cmd})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out, "blocked by safety policy") {
			t.Fatalf("command %q should be blocked, got %q", cmd, out)
		}
	}
}

func TestExecToolWorkspaceRestriction(t *testing.T) {
	dir := t.TempDir()
	tool := NewExecTool(5*time.Second, true, dir)

	out, _ := tool.Execute(context.Background(), map[string]any{
		"command":     "pwd",
		"working_dir": "/",
	})
	if !strings.Contains(out, "outside workspace") {
		t.Fatalf("out-of-workspace working_dir should be refused, got %q", out)
	}

	out, _ = tool.Execute(context.Background(), map[string]any{
		"command": "cat ../secret",
	})
	if !strings.Contains(out, "path traversal") {
		t.Fatalf("traversal should be refused, got %q", out)
	}
}
