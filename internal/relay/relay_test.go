package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/config"
	"hoursync/internal/domain"
	"hoursync/internal/repo"
)

type memStore struct {
	mu      sync.Mutex
	events  []domain.Event
	cursors map[string]int64
}

func (m *memStore) add(typ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, domain.Event{ID: int64(len(m.events) + 1), Type: typ, EntityKind: "token", Payload: `{"path":"~/hand"}`})
}

func (m *memStore) EventsAfter(_ context.Context, limit int, cursor int64) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Event
	for _, e := range m.events {
		if e.ID > cursor && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) LatestEventID(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *memStore) WebhookCursor(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.cursors[id]
	if !ok {
		return 0, repo.ErrNotFound
	}
	return cur, nil
}

func (m *memStore) SetWebhookCursor(_ context.Context, id string, v int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[id] = v
	return nil
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("token.created"))
	f := newEventFilter([]string{"token.retired", "orchestration.*"})
	assert.True(t, f.match("token.retired"))
	assert.True(t, f.match("orchestration.execute"))
	assert.False(t, f.match("token.created"))
}

func TestNewSkipsDisabledHooks(t *testing.T) {
	off := false
	assert.Nil(t, New(&memStore{}, []config.Webhook{{ID: "a", URL: "http://x", Enabled: &off}}, nil))
	assert.Nil(t, New(&memStore{}, nil, nil))
}

func TestDispatchDeliversNewMatchingEvents(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s3cret", r.Header.Get("X-Hoursync-Secret"))
		mu.Lock()
		got = append(got, body.Type)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := &memStore{cursors: map[string]int64{}}
	store.add("token.created")
	r := New(store, []config.Webhook{{ID: "hook", URL: srv.URL, Secret: "s3cret", Events: []string{"token.retired"}}}, nil)
	require.NotNil(t, r)
	ctx := context.Background()

	// history before the first dispatch is skipped
	require.NoError(t, r.Dispatch(ctx))
	store.add("token.created")
	store.add("token.retired")
	require.NoError(t, r.Dispatch(ctx))
	require.NoError(t, r.Dispatch(ctx))

	assert.Equal(t, []string{"token.retired"}, got)
	assert.Equal(t, int64(3), store.cursors["hook"])
}

func TestDispatchKeepsCursorOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	store := &memStore{cursors: map[string]int64{"hook": 0}}
	store.add("token.created")
	r := New(store, []config.Webhook{{ID: "hook", URL: srv.URL}}, nil)

	err := r.Dispatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int64(0), store.cursors["hook"])
}
