package hackmd

import (
	"context"
	"net/http"

	"hackmd-go/internal/executor"
)

// GetMe returns the authenticated user and their teams.
func (c *Client) GetMe(ctx context.Context, opts ...CallOption) (*User, error) {
	var u User
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "me"), &u, opts); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetHistory returns the notes the user has recently visited.
func (c *Client) GetHistory(ctx context.Context, opts ...CallOption) ([]Note, error) {
	var notes []Note
	if err := c.do(ctx, executor.NewRequest(http.MethodGet, "history"), &notes, opts); err != nil {
		return nil, err
	}
	return notes, nil
}
