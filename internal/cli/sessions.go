package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/config"
	"github.com/ToolLoop/ToolLoop/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := sessionManager()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}

		sessions := mgr.List()
		if len(sessions) == 0 {
			fmt.Println("No sessions stored.")
			return
		}
		for _, info := range sessions {
			fmt.Printf("%-24s updated %s\n", info.Key, info.UpdatedAt.Format("2006-01-02 15:04"))
		}
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mgr, err := sessionManager()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}

		if mgr.Delete(args[0]) {
			fmt.Printf("Deleted session %s\n", args[0])
		} else {
			fmt.Printf("Session %s not found\n", args[0])
		}
	},
}

func sessionManager() (*session.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return session.NewManager(cfg.Paths.Sessions), nil
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
}
