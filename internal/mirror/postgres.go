package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hackmd-go/internal/platform/pg"
	"hackmd-go/pkg/retry"
)

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	tx   *pg.TxRunner
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres waits for the database, migrates it, opens a pool and
// checks it. Errors name the DSN without its password.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	return openPostgres(ctx, dsn, pg.DefaultWaitPolicy())
}

func openPostgres(ctx context.Context, dsn string, wait retry.Policy) (*PostgresStore, error) {
	target := pg.RedactDSN(dsn)
	if err := pg.ValidateDSN(dsn); err != nil {
		return nil, fmt.Errorf("mirror: %s: %w", target, err)
	}
	if err := pg.WaitForDB(ctx, dsn, wait); err != nil {
		return nil, fmt.Errorf("mirror: %s: %w", target, err)
	}
	if _, err := pg.ApplyMigrations(dsn, migrations, "migrations/postgres"); err != nil {
		return nil, fmt.Errorf("mirror: migrate %s: %w", target, err)
	}
	pool, err := pg.NewPool(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("mirror: %s: %w", target, err)
	}
	if err := pg.HealthCheckPool(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("mirror: %s: %w", target, err)
	}
	return &PostgresStore{pool: pool, tx: pg.NewTxRunner(pool)}, nil
}

const pgUpsertNote = `
INSERT INTO notes (owner, id, title, tags, short_id, permalink, publish_link,
                   read_permission, write_permission, last_changed_at, synced_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (owner, id) DO UPDATE SET
    title = EXCLUDED.title,
    tags = EXCLUDED.tags,
    short_id = EXCLUDED.short_id,
    permalink = EXCLUDED.permalink,
    publish_link = EXCLUDED.publish_link,
    read_permission = EXCLUDED.read_permission,
    write_permission = EXCLUDED.write_permission,
    last_changed_at = EXCLUDED.last_changed_at,
    synced_at = EXCLUDED.synced_at`

// UpsertNotes sends all entries as one batch inside a transaction.
func (s *PostgresStore) UpsertNotes(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			tags, err := encodeTags(e.Tags)
			if err != nil {
				return err
			}
			batch.Queue(pgUpsertNote, e.Owner, e.ID, e.Title, tags, e.ShortID, e.Permalink, e.PublishLink,
				e.ReadPermission, e.WritePermission, e.LastChangedAt, e.SyncedAt)
		}
		return s.tx.GetQuerier(ctx).SendBatch(ctx, batch).Close()
	})
}

// ListNotes returns every mirrored note ordered by owner and id.
func (s *PostgresStore) ListNotes(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT owner, id, title, tags::text, short_id, permalink, publish_link,
       read_permission, write_permission, last_changed_at, synced_at
FROM notes ORDER BY owner, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			tags string
		)
		if err := rows.Scan(&e.Owner, &e.ID, &e.Title, &tags, &e.ShortID, &e.Permalink, &e.PublishLink,
			&e.ReadPermission, &e.WritePermission, &e.LastChangedAt, &e.SyncedAt); err != nil {
			return nil, err
		}
		if e.Tags, err = decodeTags([]byte(tags)); err != nil {
			return nil, err
		}
		e.LastChangedAt = e.LastChangedAt.UTC()
		e.SyncedAt = e.SyncedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordRun appends run to the sync log and returns its id.
func (s *PostgresStore) RecordRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO sync_runs (started_at, finished_at, status, error_kind, notes, teams, message)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		run.StartedAt, run.FinishedAt, run.Status, run.ErrorKind, run.Notes, run.Teams, run.Message).Scan(&id)
	return id, err
}

// LastRun returns the most recent run or ErrNoRuns.
func (s *PostgresStore) LastRun(ctx context.Context) (Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx, `
SELECT id, started_at, finished_at, status, error_kind, notes, teams, message
FROM sync_runs ORDER BY id DESC LIMIT 1`).
		Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.ErrorKind, &r.Notes, &r.Teams, &r.Message)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	return r, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
