package cli

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/ToolLoop/ToolLoop/internal/confirm"
	"github.com/ToolLoop/ToolLoop/internal/dispatch"
)

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

// terminalNotifier returns a confirmation notifier that prompts on the
// terminal. It resolves against the bridge from its own goroutine, so the
// notifier itself never blocks the requester.
func terminalNotifier(bridge *confirm.Bridge, in io.Reader, out io.Writer) confirm.Notifier {
	reader := bufio.NewReader(in)
	return func(req confirm.Request) {
		go func() {
			fmt.Fprintln(out)
			fmt.Fprintln(out, color.YellowString("⚠ Confirmation required: %s", req.Tool))
			for _, line := range formatArgsPreview(req.Args) {
				fmt.Fprintln(out, "  "+line)
			}
			fmt.Fprint(out, "Allow? [y/N]: ")

			line, _ := reader.ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			allowed := answer == "y" || answer == "yes"
			if err := bridge.Resolve(req.ID, allowed, nil); err != nil {
				fmt.Fprintf(out, "Confirmation expired: %v\n", err)
			}
		}()
	}
}

// formatArgsPreview renders sanitized arguments, sorted for stable output.
func formatArgsPreview(args map[string]any) []string {
	sanitized := dispatch.SanitizeArgs(args)
	keys := make([]string, 0, len(sanitized))
	for k := range sanitized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%s: %v", k, sanitized[k]))
	}
	return lines
}
