package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCreatorID int64

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question about a creator's content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Int64VarP(&askCreatorID, "creator", "c", 0, "creator id to ask about (required)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if askCreatorID == 0 {
		return errors.New("--creator is required")
	}

	ctx := context.Background()
	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sess, err := a.Sessions.Create(ctx, askCreatorID, "")
	if err != nil {
		return err
	}

	question := strings.Join(args, " ")
	resp, err := a.Agent.Execute(ctx, sess.ID, question)
	if err != nil {
		return err
	}

	fmt.Println(resp.Text)
	if resp.SemanticDegraded {
		fmt.Fprintln(cmd.ErrOrStderr(), "(note: semantic search was unavailable, answer used keyword retrieval only)")
	}
	return nil
}
