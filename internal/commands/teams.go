package commands

import (
	"github.com/spf13/cobra"
)

func newTeamsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List teams and their notes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the teams of the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			teams, err := c.GetTeams(cmd.Context())
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), teams)
		},
	}

	notes := &cobra.Command{
		Use:   "notes TEAM_PATH",
		Short: "List the notes of a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			teamNotes, err := c.GetTeamNotes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), teamNotes)
		},
	}

	cmd.AddCommand(list, notes)
	return cmd
}
