package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/tutorbot/internal/bot"
	"github.com/example/tutorbot/internal/logger"
	"github.com/example/tutorbot/internal/session"
)

var (
	chatUserID string
	chatMemory bool
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the tutor from the terminal",
		Long: "Reads one message per line from stdin and prints the tutor's reply. " +
			"Uses the configured store and AI provider; --memory keeps profiles in memory only.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if chatMemory {
				cfg.Storage.Backend = "memory"
			}
			// keep log lines out of the conversation
			log := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())

			backend, err := openStore(ctx, cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to open profile store: %w", err)
			}
			defer backend.Close()

			orchestrator, _, closeLocker, err := newOrchestrator(cfg, backend.Store, log)
			if err != nil {
				return err
			}
			defer closeLocker()

			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), orchestrator, chatUserID)
		},
	}
	cmd.Flags().StringVar(&chatUserID, "user", "local", "learner id to chat as")
	cmd.Flags().BoolVar(&chatMemory, "memory", false, "keep profiles in memory instead of the configured store")
	return cmd
}

// runChat feeds each input line to handler as one exchange until EOF, "quit" or ctx is done
func runChat(ctx context.Context, in io.Reader, out io.Writer, handler bot.MessageHandler, userID string) error {
	fmt.Fprintln(out, "Type a message, \"help\" for commands or \"quit\" to exit.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit":
			return nil
		}

		reply, err := handler.HandleMessage(ctx, userID, line)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && reply == "" {
			fmt.Fprintf(out, "⚠️ Something went wrong, please try again. (%s)\n", session.ErrorCode(err))
			continue
		}
		fmt.Fprintln(out, reply)
	}
}
