package commands

import (
	"github.com/spf13/cobra"

	"hackmd-go/pkg/hackmd"
)

type noteFlags struct {
	team        string
	title       string
	content     string
	contentFile string
	read        string
	write       string
	comment     string
	permalink   string
}

func newNotesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Manage personal and team notes",
	}
	cmd.AddCommand(
		newNotesListCommand(e),
		newNotesGetCommand(e),
		newNotesCreateCommand(e),
		newNotesUpdateCommand(e),
		newNotesDeleteCommand(e),
	)
	return cmd
}

func newNotesListCommand(e *env) *cobra.Command {
	var team string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			var notes []hackmd.Note
			if team != "" {
				notes, err = c.GetTeamNotes(cmd.Context(), team)
			} else {
				notes, err = c.GetNoteList(cmd.Context())
			}
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), notes)
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "List notes of this team path")
	return cmd
}

func newNotesGetCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get NOTE_ID",
		Short: "Show a note with its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			note, err := c.GetNote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), note)
		},
	}
}

func newNotesCreateCommand(e *env) *cobra.Command {
	var f noteFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		Example: `  hackmd notes create --title "Standup" --content "# Standup"
  hackmd notes create --team my-team --content-file notes.md --read signed_in`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, _, err := readContent(cmd, f.content, f.contentFile)
			if err != nil {
				return err
			}
			payload := hackmd.CreateNoteOptions{
				Title:             f.title,
				Content:           content,
				ReadPermission:    hackmd.NotePermissionRole(f.read),
				WritePermission:   hackmd.NotePermissionRole(f.write),
				CommentPermission: hackmd.CommentPermissionType(f.comment),
				Permalink:         f.permalink,
			}

			c, err := e.client()
			if err != nil {
				return err
			}
			var note *hackmd.SingleNote
			if f.team != "" {
				note, err = c.CreateTeamNote(cmd.Context(), f.team, payload)
			} else {
				note, err = c.CreateNote(cmd.Context(), payload)
			}
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), note)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.team, "team", "", "Create the note in this team")
	fl.StringVar(&f.title, "title", "", "Note title")
	fl.StringVar(&f.content, "content", "", "Note content")
	fl.StringVar(&f.contentFile, "content-file", "", "Read content from file (- for stdin)")
	fl.StringVar(&f.read, "read", "", "Read permission: owner, signed_in, guest")
	fl.StringVar(&f.write, "write", "", "Write permission: owner, signed_in, guest")
	fl.StringVar(&f.comment, "comment", "", "Comment permission: disabled, forbidden, owners, signed_in_users, everyone")
	fl.StringVar(&f.permalink, "permalink", "", "Custom permalink")
	return cmd
}

func newNotesUpdateCommand(e *env) *cobra.Command {
	var f noteFlags
	cmd := &cobra.Command{
		Use:   "update NOTE_ID",
		Short: "Update note content, permissions or permalink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, set, err := readContent(cmd, f.content, f.contentFile)
			if err != nil {
				return err
			}
			payload := hackmd.UpdateNoteOptions{
				ReadPermission:  hackmd.NotePermissionRole(f.read),
				WritePermission: hackmd.NotePermissionRole(f.write),
				Permalink:       f.permalink,
			}
			if set {
				payload.Content = &content
			}

			c, err := e.client()
			if err != nil {
				return err
			}
			if f.team != "" {
				err = c.UpdateTeamNote(cmd.Context(), f.team, args[0], payload)
			} else {
				err = c.UpdateNote(cmd.Context(), args[0], payload)
			}
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), map[string]string{"id": args[0], "status": "updated"})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.team, "team", "", "The note belongs to this team")
	fl.StringVar(&f.content, "content", "", "New content")
	fl.StringVar(&f.contentFile, "content-file", "", "Read new content from file (- for stdin)")
	fl.StringVar(&f.read, "read", "", "Read permission: owner, signed_in, guest")
	fl.StringVar(&f.write, "write", "", "Write permission: owner, signed_in, guest")
	fl.StringVar(&f.permalink, "permalink", "", "Custom permalink")
	return cmd
}

func newNotesDeleteCommand(e *env) *cobra.Command {
	var team string
	cmd := &cobra.Command{
		Use:   "delete NOTE_ID",
		Short: "Delete a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.client()
			if err != nil {
				return err
			}
			if team != "" {
				err = c.DeleteTeamNote(cmd.Context(), team, args[0])
			} else {
				err = c.DeleteNote(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return e.print(cmd.OutOrStdout(), map[string]string{"id": args[0], "status": "deleted"})
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "The note belongs to this team")
	return cmd
}
