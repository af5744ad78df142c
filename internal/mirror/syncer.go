package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/hackmd"
)

// API is the part of the HackMD client used by the syncer.
type API interface {
	GetMe(ctx context.Context, opts ...hackmd.CallOption) (*hackmd.User, error)
	GetNoteList(ctx context.Context, opts ...hackmd.CallOption) ([]hackmd.Note, error)
	GetTeamNotes(ctx context.Context, teamPath string, opts ...hackmd.CallOption) ([]hackmd.Note, error)
}

var _ API = (*hackmd.Client)(nil)

// Syncer copies note metadata from HackMD into a Store.
type Syncer struct {
	api   API
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewSyncer creates a Syncer. A nil logger discards output.
func NewSyncer(api API, store Store, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Syncer{api: api, store: store, log: log, now: time.Now}
}

// Run performs one sync and records its outcome. API failures, including
// rate limits, end the run immediately; the next scheduled run tries again.
func (s *Syncer) Run(ctx context.Context) (Run, error) {
	run := Run{StartedAt: s.now().UTC()}

	entries, teams, err := s.collect(ctx, run.StartedAt)
	run.Teams = teams
	if err != nil {
		run.ErrorKind = apierr.KindOf(err).String()
	} else if err = s.store.UpsertNotes(ctx, entries); err != nil {
		run.ErrorKind = "Store"
	}

	run.FinishedAt = s.now().UTC()
	if err != nil {
		run.Status = StatusError
		run.Message = describe(err)
	} else {
		run.Status = StatusOK
		run.Notes = len(entries)
	}

	// The outcome is recorded even when ctx was canceled mid-run.
	id, recErr := s.store.RecordRun(context.WithoutCancel(ctx), run)
	if recErr != nil {
		s.log.Error("record sync run", slog.Any("error", recErr))
	}
	run.ID = id

	if err != nil {
		s.log.Warn("sync failed",
			slog.String("kind", run.ErrorKind),
			slog.Int("teams", run.Teams),
			slog.Any("error", err))
		return run, err
	}
	s.log.Info("sync finished",
		slog.Int("notes", run.Notes),
		slog.Int("teams", run.Teams),
		slog.Duration("took", run.FinishedAt.Sub(run.StartedAt)))
	return run, nil
}

func (s *Syncer) collect(ctx context.Context, at time.Time) ([]Entry, int, error) {
	me, err := s.api.GetMe(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("get me: %w", err)
	}

	notes, err := s.api.GetNoteList(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	entries := make([]Entry, 0, len(notes))
	for _, n := range notes {
		entries = append(entries, entryFrom("", n, at))
	}

	for _, t := range me.Teams {
		teamNotes, err := s.api.GetTeamNotes(ctx, t.Path)
		if err != nil {
			return nil, len(me.Teams), fmt.Errorf("list notes of team %s: %w", t.Path, err)
		}
		for _, n := range teamNotes {
			entries = append(entries, entryFrom(t.Path, n, at))
		}
	}
	return entries, len(me.Teams), nil
}

func entryFrom(owner string, n hackmd.Note, at time.Time) Entry {
	e := Entry{
		Owner:           owner,
		ID:              n.ID,
		Title:           n.Title,
		Tags:            n.Tags,
		ShortID:         n.ShortID,
		PublishLink:     n.PublishLink,
		ReadPermission:  string(n.ReadPermission),
		WritePermission: string(n.WritePermission),
		LastChangedAt:   n.LastChangedAt.UTC(),
		SyncedAt:        at,
	}
	if n.Permalink != nil {
		e.Permalink = *n.Permalink
	}
	return e
}

func describe(err error) string {
	msg := err.Error()
	if rl, ok := apierr.RateLimitOf(err); ok && rl.RetryAfter != nil {
		msg += fmt.Sprintf(" (retry after %s)", *rl.RetryAfter)
	}
	return msg
}
