package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/agent"
	"github.com/ToolLoop/ToolLoop/internal/config"
	"github.com/ToolLoop/ToolLoop/internal/provider"
)

var (
	runMessage   string
	runSessionID string
	runVerbose   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent on a single task",
	Run:   runAgent,
}

func init() {
	runCmd.Flags().StringVarP(&runMessage, "message", "m", "", "Task for the agent")
	runCmd.Flags().StringVarP(&runSessionID, "session", "s", "cli:default", "Session ID")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Show token usage per model call")
}

func runAgent(cmd *cobra.Command, args []string) {
	if runMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("🤖 ToolLoop Run")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	eng, err := newEngine(cfg)
	if err != nil {
		fmt.Printf("Setup error: %v\n", err)
		os.Exit(1)
	}
	defer eng.close()

	fmt.Printf("🤖 ToolLoop (%s)\n", cfg.Model.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := eng.sessions.GetOrCreate(runSessionID)
	outcome, err := eng.run(ctx, sess, runMessage, terminalEvents())
	if outcome == nil {
		fmt.Printf("\nInterrupted: %v\n", err)
		os.Exit(130)
	}
	if err != nil {
		fmt.Printf("\n%s\n", color.RedString(outcome.Answer))
		os.Exit(1)
	}

	fmt.Println("\n" + outcome.Answer)
	if outcome.Status != agent.StatusDone {
		fmt.Println(color.YellowString("Run ended with status: %s after %d turns", outcome.Status, outcome.Turns))
	}
}

// terminalEvents prints loop progress to the terminal.
func terminalEvents() agent.Events {
	return agent.Events{
		Status: func(text string) {
			fmt.Println(color.HiBlackString("  %s", text))
		},
		Usage: func(usage provider.Usage) {
			if runVerbose {
				fmt.Println(color.HiBlackString("  tokens: %d prompt + %d completion",
					usage.PromptTokens, usage.CompletionTokens))
			}
		},
		RateLimit: func(remaining, limit int) {
			if runVerbose {
				fmt.Println(color.HiBlackString("  quota: %d/%d requests remaining", remaining, limit))
			}
		},
		PlanUpdated: func(text string) {
			fmt.Println(color.GreenString("  plan.md updated (%d bytes)", len(text)))
		},
		SpecificationUpdated: func(text string) {
			fmt.Println(color.GreenString("  specification.md updated (%d bytes)", len(text)))
		},
	}
}
