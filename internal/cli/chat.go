package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ToolLoop/ToolLoop/internal/config"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent interactively",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "cli:default", "Session ID")
}

func runChat(cmd *cobra.Command, args []string) {
	printHeader("💬 ToolLoop Chat")

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

	fmt.Printf("🤖 ToolLoop (%s) — type 'exit' to quit, '/clear' to reset the session\n\n", cfg.Model.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := eng.sessions.GetOrCreate(chatSessionID)
	reader := bufio.NewReader(cmd.InOrStdin())

	for {
		fmt.Print(color.CyanString("you> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		message := strings.TrimSpace(line)

		switch message {
		case "":
			continue
		case "exit", "quit":
			return
		case "/clear":
			sess.Clear()
			if err := eng.sessions.Save(sess); err != nil {
				fmt.Printf("Session save warning: %v\n", err)
			}
			fmt.Println("Session cleared.")
			continue
		}

		outcome, err := eng.run(ctx, sess, message, terminalEvents())
		if outcome == nil {
			fmt.Printf("\nInterrupted: %v\n", err)
			return
		}
		fmt.Println("\n" + outcome.Answer + "\n")
	}
}
