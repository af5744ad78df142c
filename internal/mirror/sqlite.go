package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hackmd-go/internal/platform/sqlite"
)

// SQLiteStore is a Store backed by a SQLite file or in-memory database.
type SQLiteStore struct {
	db *sql.DB
	tx *sqlite.TxRunner
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens path (sqlite.MemoryPath for an in-memory mirror) and
// migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sqlite.NewDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := sqlite.ApplyMigrations(db, migrations, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, tx: sqlite.NewTxRunner(db)}, nil
}

const sqliteUpsertNote = `
INSERT INTO notes (owner, id, title, tags, short_id, permalink, publish_link,
                   read_permission, write_permission, last_changed_at, synced_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (owner, id) DO UPDATE SET
    title = excluded.title,
    tags = excluded.tags,
    short_id = excluded.short_id,
    permalink = excluded.permalink,
    publish_link = excluded.publish_link,
    read_permission = excluded.read_permission,
    write_permission = excluded.write_permission,
    last_changed_at = excluded.last_changed_at,
    synced_at = excluded.synced_at`

// UpsertNotes inserts or updates entries in one transaction.
func (s *SQLiteStore) UpsertNotes(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := s.tx.GetQuerier(ctx)
		for _, e := range entries {
			tags, err := encodeTags(e.Tags)
			if err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx, sqliteUpsertNote,
				e.Owner, e.ID, e.Title, tags, e.ShortID, e.Permalink, e.PublishLink,
				e.ReadPermission, e.WritePermission,
				e.LastChangedAt.UnixMilli(), e.SyncedAt.UnixMilli(),
			); err != nil {
				return fmt.Errorf("upsert note %s/%s: %w", e.Owner, e.ID, err)
			}
		}
		return nil
	})
}

// ListNotes returns every mirrored note ordered by owner and id.
func (s *SQLiteStore) ListNotes(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT owner, id, title, tags, short_id, permalink, publish_link,
       read_permission, write_permission, last_changed_at, synced_at
FROM notes ORDER BY owner, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e             Entry
			tags          string
			changed, synced int64
		)
		if err := rows.Scan(&e.Owner, &e.ID, &e.Title, &tags, &e.ShortID, &e.Permalink, &e.PublishLink,
			&e.ReadPermission, &e.WritePermission, &changed, &synced); err != nil {
			return nil, err
		}
		if e.Tags, err = decodeTags([]byte(tags)); err != nil {
			return nil, err
		}
		e.LastChangedAt = time.UnixMilli(changed).UTC()
		e.SyncedAt = time.UnixMilli(synced).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordRun appends run to the sync log and returns its id.
func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO sync_runs (started_at, finished_at, status, error_kind, notes, teams, message)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Status, run.ErrorKind,
		run.Notes, run.Teams, run.Message)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LastRun returns the most recent run or ErrNoRuns.
func (s *SQLiteStore) LastRun(ctx context.Context) (Run, error) {
	var (
		r               Run
		started, finish int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, status, error_kind, notes, teams, message
FROM sync_runs ORDER BY id DESC LIMIT 1`).
		Scan(&r.ID, &started, &finish, &r.Status, &r.ErrorKind, &r.Notes, &r.Teams, &r.Message)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	r.FinishedAt = time.UnixMilli(finish).UTC()
	return r, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func decodeTags(b []byte) ([]string, error) {
	var tags []string
	if err := json.Unmarshal(b, &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}
