// Package mirror keeps a local copy of note metadata and a log of sync runs.
package mirror

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"
)

//go:embed migrations
var migrations embed.FS

// ErrNoRuns is returned by LastRun before the first sync.
var ErrNoRuns = errors.New("mirror: no sync runs recorded")

// Run statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Entry is one mirrored note. Owner is the team path, or empty for
// personal notes.
type Entry struct {
	Owner           string    `json:"owner"`
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Tags            []string  `json:"tags"`
	ShortID         string    `json:"shortId"`
	Permalink       string    `json:"permalink"`
	PublishLink     string    `json:"publishLink"`
	ReadPermission  string    `json:"readPermission"`
	WritePermission string    `json:"writePermission"`
	LastChangedAt   time.Time `json:"lastChangedAt"`
	SyncedAt        time.Time `json:"syncedAt"`
}

// Run is the outcome of one sync.
type Run struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Status     string    `json:"status"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Notes      int       `json:"notes"`
	Teams      int       `json:"teams"`
	Message    string    `json:"message,omitempty"`
}

// Store persists mirrored notes and sync runs.
type Store interface {
	UpsertNotes(ctx context.Context, entries []Entry) error
	ListNotes(ctx context.Context) ([]Entry, error)
	RecordRun(ctx context.Context, run Run) (int64, error)
	LastRun(ctx context.Context) (Run, error)
	Close() error
}

// Open opens the store for driver ("sqlite" or "postgres") and applies
// pending migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("mirror: unknown driver %q", driver)
	}
}
