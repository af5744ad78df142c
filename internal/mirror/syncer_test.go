package mirror

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hackmd-go/internal/hackmdtest"
	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/hackmd"
)

const token = "sync-token"

func newFixture(t *testing.T) (*hackmdtest.Server, *hackmd.Client, *SQLiteStore) {
	t.Helper()
	srv := hackmdtest.New(token)
	t.Cleanup(srv.Close)

	c, err := hackmd.New(token,
		hackmd.WithBaseURL(srv.BaseURL()),
		hackmd.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	return srv, c, newMemoryStore(t)
}

func seed(srv *hackmdtest.Server) {
	changed := hackmd.Timestamp{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	link := "plan"
	srv.PutNote("", hackmd.SingleNote{Note: hackmd.Note{ID: "p1", Title: "Plan", Tags: []string{"todo"}, Permalink: &link, LastChangedAt: changed, ReadPermission: hackmd.PermissionOwner}})
	srv.AddTeam(hackmd.Team{ID: "t1", Path: "crew", Name: "Crew"})
	srv.PutNote("crew", hackmd.SingleNote{Note: hackmd.Note{ID: "c1", Title: "Crew notes", LastChangedAt: changed}})
	srv.PutNote("crew", hackmd.SingleNote{Note: hackmd.Note{ID: "c2", Title: "Retro", LastChangedAt: changed}})
}

func TestSyncer_Run(t *testing.T) {
	srv, c, store := newFixture(t)
	seed(srv)

	s := NewSyncer(c, store, nil)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	run, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusOK, run.Status)
	assert.Equal(t, 3, run.Notes)
	assert.Equal(t, 1, run.Teams)
	assert.NotZero(t, run.ID)

	got, err := store.ListNotes(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Entry{
		Owner:          "",
		ID:             "p1",
		Title:          "Plan",
		Tags:           []string{"todo"},
		Permalink:      "plan",
		ReadPermission: "owner",
		LastChangedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		SyncedAt:       fixed,
	}, got[0])
	assert.Equal(t, "crew", got[1].Owner)
	assert.Equal(t, "c1", got[1].ID)

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, last.ID)
	assert.Equal(t, StatusOK, last.Status)
}

func TestSyncer_RateLimitedIsRecordedNotRetried(t *testing.T) {
	srv, c, store := newFixture(t)
	seed(srv)
	srv.FailNext(hackmdtest.Fault{
		Status: http.StatusTooManyRequests,
		Header: http.Header{"Retry-After": {"30"}},
		Body:   `{"error":"Too many requests"}`,
	})

	run, err := NewSyncer(c, store, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsRateLimited(err))
	assert.Equal(t, StatusError, run.Status)
	assert.Equal(t, "RateLimited", run.ErrorKind)
	assert.Contains(t, run.Message, "retry after 30s")
	assert.Len(t, srv.Requests(), 1)

	notes, err := store.ListNotes(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notes)

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "RateLimited", last.ErrorKind)
}

func TestSyncer_TeamFailureAbortsRun(t *testing.T) {
	srv, c, store := newFixture(t)
	seed(srv)
	// me, personal notes, then the team listing fails twice.
	srv.FailNext(
		hackmdtest.Fault{Status: http.StatusOK, Body: `{"id":"u-1","name":"Test User","userPath":"test-user","teams":[{"id":"t1","path":"crew"}]}`},
		hackmdtest.Fault{Status: http.StatusOK, Body: `[]`},
		hackmdtest.Fault{Status: http.StatusServiceUnavailable},
		hackmdtest.Fault{Status: http.StatusServiceUnavailable},
	)

	run, err := NewSyncer(c, store, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, apierr.IsServer(err))
	assert.Equal(t, "Server", run.ErrorKind)
	assert.Equal(t, 1, run.Teams)
}

type failingStore struct {
	Store
	runs []Run
}

func (f *failingStore) UpsertNotes(context.Context, []Entry) error {
	return errors.New("disk full")
}

func (f *failingStore) RecordRun(_ context.Context, r Run) (int64, error) {
	f.runs = append(f.runs, r)
	return int64(len(f.runs)), nil
}

func TestSyncer_StoreFailure(t *testing.T) {
	srv, c, _ := newFixture(t)
	seed(srv)
	store := &failingStore{}

	run, err := NewSyncer(c, store, nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Store", run.ErrorKind)
	require.Len(t, store.runs, 1)
	assert.Equal(t, StatusError, store.runs[0].Status)
	assert.Contains(t, store.runs[0].Message, "disk full")
}

func TestSyncer_CanceledStillRecords(t *testing.T) {
	_, c, store := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := NewSyncer(c, store, nil).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, "Transport", run.ErrorKind)

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusError, last.Status)
}
