package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/creatorlens/creatorlens/internal/session"
)

var (
	chatCreatorID int64
	chatSessionID string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat about a creator's content",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().Int64VarP(&chatCreatorID, "creator", "c", 0, "creator id to chat about (required)")
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "resume an existing session id")
	rootCmd.AddCommand(chatCmd)

	// The bare root command runs chat too; it needs the same flags.
	rootCmd.Flags().Int64VarP(&chatCreatorID, "creator", "c", 0, "creator id to chat about (required)")
	rootCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "resume an existing session id")
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatCreatorID == 0 {
		return errors.New("--creator is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	creator, err := a.Catalog.Creator(ctx, chatCreatorID)
	if err != nil {
		return fmt.Errorf("loading creator %d: %w", chatCreatorID, err)
	}

	var sess *session.Session
	if chatSessionID != "" {
		id, err := uuid.Parse(chatSessionID)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", chatSessionID, err)
		}
		sess, err = a.Sessions.Get(ctx, id)
		if err != nil {
			return err
		}
		if sess.CreatorID != chatCreatorID {
			return fmt.Errorf("session %s belongs to creator %d, not %d", id, sess.CreatorID, chatCreatorID)
		}
	} else {
		sess, err = a.Sessions.Create(ctx, chatCreatorID, "")
		if err != nil {
			return err
		}
	}

	fmt.Printf("Chatting about %s (session %s). Ctrl-D or \"exit\" to quit.\n\n", creator.Name, sess.ID)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if message == "exit" || message == "quit" {
			break
		}

		_, err := a.Agent.ExecuteStream(ctx, sess.ID, message,
			func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				fmt.Print(chunk.Text())
				return nil
			})
		fmt.Println()
		if err != nil {
			if ctx.Err() != nil {
				return nil // interrupted, exit quietly
			}
			fmt.Fprintf(os.Stderr, "%v\n", err)
			continue
		}
		fmt.Println()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
