package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/config"
	"github.com/ToolLoop/ToolLoop/internal/tools"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ ToolLoop Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 ToolLoop Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			fmt.Println("Config:  " + configPath)
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Invalid (%v)\n", err)
			return
		}

		fmt.Printf("Model:   %s\n", cfg.Model.Name)
		if cfg.Providers.Gemini.APIKey != "" || cfg.Providers.OpenAI.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found (set TOOLLOOP_GEMINI_API_KEY or TOOLLOOP_OPENAI_API_KEY)")
		}

		fmt.Printf("Limits:  %d requests / %s\n", cfg.Limits.MaxRequests, cfg.Limits.Period())
		fmt.Printf("Loop:    max %d turns, stuck window %d\n", cfg.Loop.MaxTurns, cfg.Loop.StuckWindow)
		fmt.Printf("Tools:   %s\n", strings.Join(tools.DefaultToolNames(), ", "))

		if cfg.Timeline.Enabled {
			fmt.Println("Timeline: ✓ Enabled (" + cfg.Timeline.Path + ")")
		} else {
			fmt.Println("Timeline: ✗ Disabled")
		}
		if cfg.Trace.Enabled {
			fmt.Println("Tracing:  ✓ Enabled (" + cfg.Trace.Brokers + " → " + cfg.Trace.Topic + ")")
		} else {
			fmt.Println("Tracing:  ✗ Disabled")
		}

		fmt.Println("Status:  Ready")
	},
}
