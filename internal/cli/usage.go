package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/config"
	"github.com/ToolLoop/ToolLoop/internal/timeline"
)

var usageRunID string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show token usage from the run timeline",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}
		if !cfg.Timeline.Enabled {
			fmt.Println("Timeline is disabled; enable it in config to record usage.")
			return
		}

		tl, err := timeline.NewService(cfg.Timeline.Path)
		if err != nil {
			fmt.Printf("Timeline error: %v\n", err)
			os.Exit(1)
		}
		defer tl.Close()

		if usageRunID != "" {
			run, err := tl.GetRun(usageRunID)
			if err != nil {
				fmt.Printf("Run lookup error: %v\n", err)
				os.Exit(1)
			}
			spans, _ := tl.CountToolSpans(usageRunID)
			fmt.Printf("Run:    %s\n", run.RunID)
			fmt.Printf("Status: %s after %d turns\n", run.Status, run.Turns)
			fmt.Printf("Tokens: %d total (%d prompt + %d completion)\n",
				run.TotalTokens, run.PromptTokens, run.CompletionTokens)
			fmt.Printf("Tools:  %d calls\n", spans)
			return
		}

		total, err := tl.DailyTokenUsage()
		if err != nil {
			fmt.Printf("Usage query error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Tokens used today: %d\n", total)
	},
}

func init() {
	usageCmd.Flags().StringVarP(&usageRunID, "run", "r", "", "Show a single run by ID")
}
