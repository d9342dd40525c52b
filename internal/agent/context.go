package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ToolLoop/ToolLoop/internal/dispatch"
	"github.com/ToolLoop/ToolLoop/internal/provider"
	"github.com/ToolLoop/ToolLoop/internal/session"
	"github.com/ToolLoop/ToolLoop/internal/tools"
)

// ContextBuilder assembles the system prompt and messages.
type ContextBuilder struct {
	workspace string
	registry  *tools.Registry
}

// NewContextBuilder creates a new ContextBuilder.
func NewContextBuilder(workspace string, registry *tools.Registry) *ContextBuilder {
	return &ContextBuilder{
		workspace: workspace,
		registry:  registry,
	}
}

// BuildSystemPrompt constructs the full system prompt from runtime info and
// the registered tools.
func (b *ContextBuilder) BuildSystemPrompt() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	runtimeInfo := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	wsPath := b.workspace
	if strings.HasPrefix(wsPath, "~") {
		home, _ := os.UserHomeDir()
		wsPath = filepath.Join(home, wsPath[1:])
	}
	if abs, err := filepath.Abs(wsPath); err == nil {
		wsPath = abs
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`# ToolLoop

You are ToolLoop, a helpful, efficient AI assistant.
You work in turns: think, call tools when you need them, then give a final
text answer once the task is complete.

## Current Time
%s

## Runtime
%s

## Workspace
Your workspace is at: %s
File writes and deletions are restricted to the workspace.

## Session Documents
Two virtual documents live only in this session, not on disk:
- %s: your working plan. Update it with update_plan or write_file.
- %s: the task specification. Update it with update_specification or write_file.
Read them with read_file using those exact paths.
`, now, runtimeInfo, wsPath, dispatch.PlanFile, dispatch.SpecificationFile))

	toolList := b.registry.List()
	if len(toolList) > 0 {
		sb.WriteString("\n## Tools\nYou have the following tools available:\n")
		for _, tool := range toolList {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name(), tool.Description()))
		}
	}

	sb.WriteString("\nIMPORTANT: When responding to direct questions, reply directly with text.\nAlways be helpful, accurate, and concise.\n")
	return sb.String()
}

// BuildMessages constructs the seed message list for a run: system prompt
// plus prior session history. The loop appends the current user message
// itself, so a trailing copy of it in the history is dropped.
func (b *ContextBuilder) BuildMessages(history []session.Message, currentMessage string) []provider.Message {
	messages := []provider.Message{
		{Role: "system", Content: b.BuildSystemPrompt()},
	}

	// The caller may have already appended the current message to the session.
	if len(history) > 0 && history[len(history)-1].Content == currentMessage {
		history = history[:len(history)-1]
	}

	for _, msg := range history {
		messages = append(messages, provider.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return messages
}
