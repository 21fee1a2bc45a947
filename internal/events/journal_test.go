package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/db"
	"hoursync/internal/domain"
	"hoursync/internal/events"
	"hoursync/internal/gameapi"
	"hoursync/internal/migrate"
	"hoursync/internal/repo"
	"hoursync/internal/tokens"
)

type snapshotAPI struct {
	payloads []domain.TokenPayload
}

func (s *snapshotAPI) GetAllTokens(context.Context, gameapi.TokensFilter) ([]domain.TokenPayload, error) {
	return s.payloads, nil
}

func (s *snapshotAPI) GetTokenAtPath(context.Context, string) (domain.TokenPayload, error) {
	return domain.TokenPayload{}, &gameapi.APIError{StatusCode: 404}
}

func openRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestJournalRecordsTokenLifecycle(t *testing.T) {
	r := openRepo(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	journal := &events.Journal{Writer: events.Writer{DB: r.DB, Now: func() time.Time { return now }}}

	api := &snapshotAPI{payloads: []domain.TokenPayload{
		{ID: "1", PayloadType: domain.PayloadElementStack, Path: "~/hand.misc/!1", ElementID: "candle"},
	}}
	src := tokens.NewSource(tokens.NewStore(), api, tokens.WithObserver(journal))
	t.Cleanup(src.Views().Close)
	ctx := context.Background()
	require.NoError(t, src.Poll(ctx))
	api.payloads = nil
	require.NoError(t, src.Poll(ctx))

	evts, err := r.LatestEvents(ctx, 10, repo.EventFilters{EntityKind: "token"})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, events.TokenRetired, evts[0].Type)
	assert.Equal(t, events.TokenCreated, evts[1].Type)
	assert.Equal(t, "1", evts[1].EntityID)
	assert.Equal(t, "2026-01-02T03:04:05Z", evts[1].TS)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(evts[1].Payload), &payload))
	assert.Equal(t, "candle", payload["element_id"])
}

func TestRepoEventQueries(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	journal := &events.Journal{Writer: events.Writer{DB: r.DB}}
	journal.Record(ctx, "orchestration.open", "orchestration", "o1", "s1", map[string]any{"phase": "unstarted"})
	journal.Record(ctx, "orchestration.assign", "orchestration", "o1", "s1", nil)
	journal.Record(ctx, "orchestration.open", "orchestration", "o2", "s2", nil)

	latest, err := r.LatestEventID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest)

	after, err := r.EventsAfter(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, int64(2), after[0].ID)

	bySession, err := r.LatestEvents(ctx, 10, repo.EventFilters{SessionID: "s1"})
	require.NoError(t, err)
	assert.Len(t, bySession, 2)

	byPrefix, err := r.LatestEvents(ctx, 10, repo.EventFilters{Type: "orchestration.*"})
	require.NoError(t, err)
	assert.Len(t, byPrefix, 3)

	page, err := r.LatestEventsFrom(ctx, 10, 3, repo.EventFilters{})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = r.WebhookCursor(ctx, "hook")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	require.NoError(t, r.SetWebhookCursor(ctx, "hook", 2))
	require.NoError(t, r.SetWebhookCursor(ctx, "hook", 3))
	cur, err := r.WebhookCursor(ctx, "hook")
	require.NoError(t, err)
	assert.Equal(t, int64(3), cur)
}
