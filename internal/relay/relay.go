// Package relay posts journal events to configured webhooks. It runs as one
// task on the polling scheduler, so it shares the same polling budget as the
// token sources.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"hoursync/internal/config"
	"hoursync/internal/domain"
	"hoursync/internal/repo"
)

const (
	defaultWebhookTimeout = 5 * time.Second
	defaultWebhookBatch   = 100
)

// Store is the journal access the relay needs. repo.Repo implements it.
type Store interface {
	EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error)
	LatestEventID(ctx context.Context) (int64, error)
	WebhookCursor(ctx context.Context, hookID string) (int64, error)
	SetWebhookCursor(ctx context.Context, hookID string, eventID int64) error
}

type Relay struct {
	store    Store
	webhooks []config.Webhook
	client   *http.Client
	log      *zap.Logger

	mu      sync.Mutex
	cursors map[string]int64
}

// New returns nil when no webhook is enabled.
func New(store Store, webhooks []config.Webhook, log *zap.Logger) *Relay {
	var enabled []config.Webhook
	for _, hook := range webhooks {
		if hook.IsEnabled() && strings.TrimSpace(hook.URL) != "" {
			enabled = append(enabled, hook)
		}
	}
	if len(enabled) == 0 {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		store:    store,
		webhooks: enabled,
		client:   &http.Client{Timeout: defaultWebhookTimeout},
		log:      log,
		cursors:  make(map[string]int64),
	}
}

// Dispatch delivers pending events to every hook. It is a scheduler.Task.
func (r *Relay) Dispatch(ctx context.Context) error {
	var errs []error
	for _, hook := range r.webhooks {
		if err := r.dispatchWebhook(ctx, hook); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", hook.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) dispatchWebhook(ctx context.Context, hook config.Webhook) error {
	cursor, err := r.cursorFor(ctx, hook)
	if err != nil {
		return err
	}
	evts, err := r.store.EventsAfter(ctx, defaultWebhookBatch, cursor)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	if len(evts) == 0 {
		return nil
	}
	filter := newEventFilter(hook.Events)
	last := cursor
	defer func() {
		if last != cursor {
			r.setCursor(ctx, hook, last)
		}
	}()
	for _, evt := range evts {
		if filter.match(evt.Type) {
			if err := r.postEvent(ctx, hook, evt); err != nil {
				return fmt.Errorf("deliver event %d: %w", evt.ID, err)
			}
		}
		last = evt.ID
	}
	return nil
}

// cursorFor starts a hook without a stored cursor at the newest event, so
// history is not replayed.
func (r *Relay) cursorFor(ctx context.Context, hook config.Webhook) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.cursors[hook.ID]; ok {
		return cur, nil
	}
	cur, err := r.store.WebhookCursor(ctx, hook.ID)
	if errors.Is(err, repo.ErrNotFound) {
		cur, err = r.store.LatestEventID(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}
	r.cursors[hook.ID] = cur
	return cur, nil
}

func (r *Relay) setCursor(ctx context.Context, hook config.Webhook, value int64) {
	r.mu.Lock()
	r.cursors[hook.ID] = value
	r.mu.Unlock()
	if err := r.store.SetWebhookCursor(ctx, hook.ID, value); err != nil {
		r.log.Warn("store webhook cursor", zap.String("webhook", hook.ID), zap.Error(err))
	}
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (r *Relay) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	payload := json.RawMessage([]byte("{}"))
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage([]byte(evt.Payload))
		} else {
			raw = evt.Payload
		}
	}
	body := webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		SessionID:  evt.SessionID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := r.client
	if hook.TimeoutSeconds > 0 {
		if timeout := time.Duration(hook.TimeoutSeconds) * time.Second; timeout != r.client.Timeout {
			client = &http.Client{Timeout: timeout}
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hoursync-Event", evt.Type)
	req.Header.Set("X-Hoursync-Delivery", fmt.Sprintf("%d", evt.ID))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Hoursync-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}

type eventFilter struct {
	all      bool
	set      map[string]struct{}
	prefixes []string
}

// newEventFilter accepts exact types and "prefix.*" patterns.
func newEventFilter(events []string) eventFilter {
	if len(events) == 0 {
		return eventFilter{all: true}
	}
	f := eventFilter{set: make(map[string]struct{}, len(events))}
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(key, "*"); ok {
			f.prefixes = append(f.prefixes, prefix)
			continue
		}
		f.set[key] = struct{}{}
	}
	if len(f.set) == 0 && len(f.prefixes) == 0 {
		return eventFilter{all: true}
	}
	return f
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[evt]; ok {
		return true
	}
	for _, prefix := range f.prefixes {
		if strings.HasPrefix(evt, prefix) {
			return true
		}
	}
	return false
}
