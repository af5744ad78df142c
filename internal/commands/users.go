package commands

import (
	"github.com/spf13/cobra"
)

func newMeCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			me, err := c.GetMe(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), me)
		},
	}
}

func newHistoryCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recently viewed notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			notes, err := c.GetHistory(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), notes)
		},
	}
}
