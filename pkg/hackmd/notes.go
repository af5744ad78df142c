package hackmd

import (
	"context"
	"net/http"

	"hackmd-go/internal/executor"
	"hackmd-go/pkg/apierr"
)

// GetNoteList returns the user's personal notes.
func (c *Client) GetNoteList(ctx context.Context, opts ...CallOption) ([]Note, error) {
	var notes []Note
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "notes"), &notes, opts); err != nil {
		return nil, err
	}
	return notes, nil
}

// GetNote returns a note with its content.
func (c *Client) GetNote(ctx context.Context, noteID string, opts ...CallOption) (*SingleNote, error) {
	id, err := segment("note ID", noteID)
	if err != nil {
		return nil, err
	}
	var n SingleNote
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "notes/"+id), &n, opts); err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNote creates a personal note.
func (c *Client) CreateNote(ctx context.Context, payload CreateNoteOptions, opts ...CallOption) (*SingleNote, error) {
	var n SingleNote
	if err := c.doJSON(ctx, http.MethodPost, "notes", payload, &n, opts); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote changes a personal note's content, permissions or permalink.
// HackMD acknowledges updates without a body.
func (c *Client) UpdateNote(ctx context.Context, noteID string, payload UpdateNoteOptions, opts ...CallOption) error {
	id, err := segment("note ID", noteID)
	if err != nil {
		return err
	}
	if payload.empty() {
		return apierr.Validation("update payload is empty")
	}
	return c.doJSON(ctx, http.MethodPatch, "notes/"+id, payload, nil, opts)
}

// UpdateNoteContent replaces a personal note's content.
func (c *Client) UpdateNoteContent(ctx context.Context, noteID, content string, opts ...CallOption) error {
	return c.UpdateNote(ctx, noteID, UpdateNoteOptions{Content: &content}, opts...)
}

// DeleteNote deletes a personal note.
func (c *Client) DeleteNote(ctx context.Context, noteID string, opts ...CallOption) error {
	id, err := segment("note ID", noteID)
	if err != nil {
		return err
	}
	return c.do(ctx, executor.NewRequest(http.MethodDelete, "notes/"+id), nil, opts)
}
