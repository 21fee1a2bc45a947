// Package tokens mirrors the game's token graph into long-lived models.
//
// A Source polls full snapshots, diffs them against its Store and keeps one
// model per token id for as long as that id keeps appearing. Models expose
// reactive fields derived from their latest payload.
package tokens

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// Model is a live token. The set of implementations is closed: ElementStack,
// Situation, ConnectedTerrain and WisdomNode.
type Model interface {
	ID() string
	PayloadType() domain.PayloadType
	Path() string
	Payload() domain.TokenPayload
	PayloadValue() reactive.Readable[domain.TokenPayload]
	Retired() reactive.Readable[bool]
	Refresh(ctx context.Context) error

	base() *token
}

// ContractError reports a payload this package does not understand. It means
// the game API changed shape and is never recovered from.
type ContractError struct {
	TokenID string
	Reason  string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("token contract violation for %q: %s", e.TokenID, e.Reason)
}

// env is what a model may reach besides its own payload. It is handed to
// every model by the Source that creates it.
type env struct {
	api    API
	tokens reactive.Readable[[]Model]
	views  *Views
}

func payloadEqual(a, b domain.TokenPayload) bool { return cmp.Equal(a, b) }

type token struct {
	id          string
	payloadType domain.PayloadType
	env         *env

	payload *reactive.Value[domain.TokenPayload]
	retired *reactive.Value[bool]

	mu      sync.Mutex
	closers []func()
	lazy    map[string]any
}

func newToken(p domain.TokenPayload, e *env) *token {
	return &token{
		id:          p.ID,
		payloadType: p.PayloadType,
		env:         e,
		payload:     reactive.NewValue(p, payloadEqual),
		retired:     reactive.NewValue(false, reactive.Comparable[bool]),
		lazy:        make(map[string]any),
	}
}

func (t *token) base() *token { return t }
func (t *token) ID() string { return t.id }
func (t *token) PayloadType() domain.PayloadType { return t.payloadType }
func (t *token) Path() string { return t.payload.Get().Path }
func (t *token) Payload() domain.TokenPayload { return t.payload.Get() }
func (t *token) PayloadValue() reactive.Readable[domain.TokenPayload] { return t.payload }
func (t *token) Retired() reactive.Readable[bool] { return t.retired }

// Refresh fetches this token's payload by path and applies it in place.
func (t *token) Refresh(ctx context.Context) error {
	if t.retired.Get() {
		return nil
	}
	p, err := t.env.api.GetTokenAtPath(ctx, t.Path())
	if err != nil {
		return fmt.Errorf("refresh %s: %w", t.id, err)
	}
	return t.update(p)
}

func (t *token) update(p domain.TokenPayload) error {
	if p.ID != t.id {
		return &ContractError{TokenID: t.id, Reason: fmt.Sprintf("update carries id %q", p.ID)}
	}
	if p.PayloadType != t.payloadType {
		return &ContractError{TokenID: t.id, Reason: fmt.Sprintf("payload type changed from %s to %s", t.payloadType, p.PayloadType)}
	}
	if t.retired.Get() {
		return nil
	}
	t.payload.Set(p)
	return nil
}

// patch applies a local, unconfirmed change to the payload. The next polled
// payload replaces it.
func (t *token) patch(fn func(p domain.TokenPayload) domain.TokenPayload) {
	t.payload.Update(fn)
}

func (t *token) retire() {
	if !t.retired.Set(true) {
		return
	}
	t.mu.Lock()
	closers := t.closers
	t.closers = nil
	t.mu.Unlock()
	for _, c := range closers {
		c()
	}
}

// memo returns the derived node stored under key, building it on first use.
// Nodes are closed when the token retires.
func memo[T any](t *token, key string, build func() *reactive.Derived[T]) reactive.Readable[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d, ok := t.lazy[key]; ok {
		return d.(*reactive.Derived[T])
	}
	d := build()
	t.lazy[key] = d
	t.closers = append(t.closers, d.Close)
	return d
}

// field derives a value from the payload alone.
func field[T any](t *token, key string, fn func(domain.TokenPayload) T, equal reactive.Equal[T]) reactive.Readable[T] {
	return memo(t, key, func() *reactive.Derived[T] {
		return reactive.Map[domain.TokenPayload, T](t.payload, fn, equal)
	})
}

// withTokens derives a value from the payload and the full token list.
func withTokens[T any](t *token, key string, fn func(domain.TokenPayload, []Model) T, equal reactive.Equal[T]) reactive.Readable[T] {
	return memo(t, key, func() *reactive.Derived[T] {
		return reactive.Combine[domain.TokenPayload, []Model, T](t.payload, t.env.tokens, fn, equal)
	})
}

// newModel dispatches on payload type.
func newModel(p domain.TokenPayload, e *env) (Model, error) {
	switch p.PayloadType {
	case domain.PayloadElementStack:
		return &ElementStack{token: newToken(p, e)}, nil
	case domain.PayloadSituation, domain.PayloadWorkstationSituation:
		return &Situation{token: newToken(p, e)}, nil
	case domain.PayloadConnectedTerrain:
		return &ConnectedTerrain{token: newToken(p, e)}, nil
	case domain.PayloadWisdomNodeTerrain:
		return &WisdomNode{token: newToken(p, e)}, nil
	default:
		return nil, &ContractError{TokenID: p.ID, Reason: fmt.Sprintf("unknown payload type %q", p.PayloadType)}
	}
}

func knownPayloadType(t domain.PayloadType) bool {
	switch t {
	case domain.PayloadElementStack, domain.PayloadSituation, domain.PayloadWorkstationSituation,
		domain.PayloadConnectedTerrain, domain.PayloadWisdomNodeTerrain:
		return true
	}
	return false
}
