package hackmd

import (
	"context"
	"net/http"

	"hackmd-go/internal/executor"
	"hackmd-go/pkg/apierr"
)

// GetTeams returns the teams the user belongs to.
func (c *Client) GetTeams(ctx context.Context, opts ...CallOption) ([]Team, error) {
	var teams []Team
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "teams"), &teams, opts); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetTeamNotes returns the notes of the team at teamPath.
func (c *Client) GetTeamNotes(ctx context.Context, teamPath string, opts ...CallOption) ([]Note, error) {
	team, err := segment("team path", teamPath)
	if err != nil {
		return nil, err
	}
	var notes []Note
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "teams/"+team+"/notes"), &notes, opts); err != nil {
		return nil, err
	}
	return notes, nil
}

// CreateTeamNote creates a note in the team at teamPath.
func (c *Client) CreateTeamNote(ctx context.Context, teamPath string, payload CreateNoteOptions, opts ...CallOption) (*SingleNote, error) {
	team, err := segment("team path", teamPath)
	if err != nil {
		return nil, err
	}
	var n SingleNote
	if err := c.doJSON(ctx, http.MethodPost, "teams/"+team+"/notes", payload, &n, opts); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateTeamNote changes a team note's content, permissions or permalink.
func (c *Client) UpdateTeamNote(ctx context.Context, teamPath, noteID string, payload UpdateNoteOptions, opts ...CallOption) error {
	path, err := teamNotePath(teamPath, noteID)
	if err != nil {
		return err
	}
	if payload.empty() {
		return apierr.Validation("update payload is empty")
	}
	return c.doJSON(ctx, http.MethodPatch, path, payload, nil, opts)
}

// UpdateTeamNoteContent replaces a team note's content.
func (c *Client) UpdateTeamNoteContent(ctx context.Context, teamPath, noteID, content string, opts ...CallOption) error {
	return c.UpdateTeamNote(ctx, teamPath, noteID, UpdateNoteOptions{Content: &content}, opts...)
}

// DeleteTeamNote deletes a team note.
func (c *Client) DeleteTeamNote(ctx context.Context, teamPath, noteID string, opts ...CallOption) error {
	path, err := teamNotePath(teamPath, noteID)
	if err != nil {
		return err
	}
	return c.do(ctx, executor.NewRequest(http.MethodDelete, path), nil, opts)
}

func teamNotePath(teamPath, noteID string) (string, error) {
	team, err := segment("team path", teamPath)
	if err != nil {
		return "", err
	}
	id, err := segment("note ID", noteID)
	if err != nil {
		return "", err
	}
	return "teams/" + team + "/notes/" + id, nil
}
