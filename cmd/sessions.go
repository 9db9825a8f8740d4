package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sessionsCreatorID int64

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a creator's chat sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsListCmd.Flags().Int64VarP(&sessionsCreatorID, "creator", "c", 0, "creator id (required)")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	if sessionsCreatorID == 0 {
		return errors.New("--creator is required")
	}

	ctx := context.Background()
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sessions, err := a.Sessions.List(ctx, sessionsCreatorID, 50)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %-40s  %d messages  %s\n",
			s.ID, title, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	ctx := context.Background()
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sess, err := a.Sessions.Get(ctx, id)
	if err != nil {
		return err
	}
	messages, err := a.Sessions.History(ctx, id, int(a.Config.HistoryLimit))
	if err != nil {
		return err
	}

	fmt.Printf("Session %s (creator %d): %s\n\n", sess.ID, sess.CreatorID, sess.Title)
	for _, m := range messages {
		fmt.Printf("[%s] %s\n\n", m.Role, m.Content)
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", args[0], err)
	}

	ctx := context.Background()
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if err := a.Sessions.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s.\n", id)
	return nil
}
