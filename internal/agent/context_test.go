package agent

import (
	"strings"
	"testing"

	"github.com/ToolLoop/ToolLoop/internal/session"
	"github.com/ToolLoop/ToolLoop/internal/tools"
)

func TestBuildSystemPrompt(t *testing.T) {
	registry := tools.NewRegistry()
	registry.Register(tools.NewReadFileTool())
	registry.Register(tools.NewListDirTool())

	b := NewContextBuilder("/tmp/ws", registry)
	prompt := b.BuildSystemPrompt()

	for _, want := range []string{"# ToolLoop", "/tmp/ws", "plan.md", "specification.md", "read_file", "list_dir"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildMessagesDropsTrailingDuplicate(t *testing.T) {
	b := NewContextBuilder("/tmp/ws", tools.NewRegistry())
	history := []session.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
		{Role: "user", Content: "current question"},
	}

	msgs := b.BuildMessages(history, "current question")

	if msgs[0].Role != "system" {
		t.Fatalf("first message role = %s", msgs[0].Role)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3 (system + 2 history)", len(msgs))
	}
	if msgs[2].Content != "earlier answer" {
		t.Errorf("trailing duplicate of current message not dropped: %q", msgs[2].Content)
	}
}
