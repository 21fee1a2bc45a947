package tokens

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hoursync/internal/domain"
	"hoursync/internal/gameapi"
	"hoursync/internal/reactive"
	"hoursync/internal/scheduler"
)

// API is the part of the game API a Source needs.
type API interface {
	GetAllTokens(ctx context.Context, filter gameapi.TokensFilter) ([]domain.TokenPayload, error)
	GetTokenAtPath(ctx context.Context, path string) (domain.TokenPayload, error)
}

// Registrar accepts poll tasks.
type Registrar interface {
	Register(name string, task scheduler.Task) func()
}

// Observer is told about model lifecycle changes after each poll.
type Observer interface {
	TokenCreated(m Model)
	TokenRetired(m Model)
}

// Source keeps a Store in sync with the game's token snapshots.
type Source struct {
	name     string
	store    *Store
	api      API
	filter   gameapi.TokensFilter
	log      *zap.Logger
	observer Observer

	tokens *reactive.Value[[]Model]
	layout *reactive.Value[uint64]
	graph  *reactive.Derived[[]Model]
	views  *Views
	env    *env
	fatal  *reactive.Value[error]

	pollMu sync.Mutex

	mu         sync.Mutex
	active     bool
	generation uint64
	unregister func()
}

// Option configures a Source.
type Option func(*sourceOptions)

type sourceOptions struct {
	name          string
	filter        gameapi.TokensFilter
	log           *zap.Logger
	observer      Observer
	alwaysVisible []string
}

// WithName sets the scheduler task name.
func WithName(name string) Option {
	return func(o *sourceOptions) { o.name = name }
}

// WithFilter narrows the polled snapshot.
func WithFilter(f gameapi.TokensFilter) Option {
	return func(o *sourceOptions) { o.filter = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *sourceOptions) { o.log = l }
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *sourceOptions) { o.observer = obs }
}

// WithAlwaysVisible overrides the always-visible path prefixes.
func WithAlwaysVisible(prefixes []string) Option {
	return func(o *sourceOptions) { o.alwaysVisible = prefixes }
}

// NewSource creates a Source that owns store.
func NewSource(store *Store, api API, opts ...Option) *Source {
	o := sourceOptions{name: "tokens", log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	s := &Source{
		name:     o.name,
		store:    store,
		api:      api,
		filter:   o.filter,
		log:      o.log,
		observer: o.observer,
		tokens:   reactive.NewValue[[]Model](nil, reactive.SameElements[Model]),
		layout:   reactive.NewValue[uint64](0, reactive.Comparable[uint64]),
		fatal:    reactive.NewValue[error](nil, nil),
	}
	// graph fires on set changes and on moves within an unchanged set; views
	// that depend on token paths read it instead of tokens.
	s.graph = reactive.Combine[[]Model, uint64, []Model](s.tokens, s.layout,
		func(list []Model, _ uint64) []Model { return list }, nil)
	s.views = newViews(s.graph, o.alwaysVisible)
	s.env = &env{api: api, tokens: s.graph, views: s.views}
	return s
}

// Tokens is the current model list. It only publishes when the list differs
// from the previous one by reference.
func (s *Source) Tokens() reactive.Readable[[]Model] { return s.tokens }

// Views returns the visibility and terrain views over this source.
func (s *Source) Views() *Views { return s.views }

// Store returns the identity cache owned by this source.
func (s *Source) Store() *Store { return s.store }

// Fatal holds the contract error that stopped this source, if any.
func (s *Source) Fatal() reactive.Readable[error] { return s.fatal }

// Start registers the poll task. It is a no-op while already started.
func (s *Source) Start(r Registrar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || s.fatal.Get() != nil {
		return
	}
	s.active = true
	s.generation++
	gen := s.generation
	s.unregister = r.Register(s.name, func(ctx context.Context) error {
		return s.scheduledPoll(ctx, gen)
	})
	s.log.Info("token source started", zap.String("source", s.name))
}

// Stop unregisters the poll task. A poll already in flight finishes but its
// result is discarded.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	s.generation++
	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}
	s.log.Info("token source stopped", zap.String("source", s.name))
}

// Follow starts the source while running is true and stops it otherwise.
func (s *Source) Follow(r Registrar, running reactive.Readable[bool]) func() {
	return running.Subscribe(func(up bool) {
		if up {
			s.Start(r)
		} else {
			s.Stop()
		}
	})
}

// Poll fetches one snapshot and applies it.
func (s *Source) Poll(ctx context.Context) error {
	return s.poll(ctx, func() bool { return true })
}

func (s *Source) scheduledPoll(ctx context.Context, gen uint64) error {
	err := s.poll(ctx, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.active && s.generation == gen
	})
	var contractErr *ContractError
	if errors.As(err, &contractErr) {
		s.log.Error("token contract violated, stopping source", zap.String("source", s.name), zap.Error(err))
		s.fatal.Set(err)
		s.Stop()
	}
	return err
}

func (s *Source) poll(ctx context.Context, current func() bool) error {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	payloads, err := s.api.GetAllTokens(ctx, s.filter)
	if err != nil {
		return fmt.Errorf("fetch tokens: %w", err)
	}
	if !current() {
		s.log.Debug("discarding stale snapshot", zap.String("source", s.name))
		return nil
	}
	return s.apply(payloads)
}

func (s *Source) apply(payloads []domain.TokenPayload) error {
	seen := make(map[string]struct{}, len(payloads))
	for _, p := range payloads {
		if p.ID == "" {
			return &ContractError{Reason: "token without id at " + p.Path}
		}
		if _, dup := seen[p.ID]; dup {
			return &ContractError{TokenID: p.ID, Reason: "duplicate id in snapshot"}
		}
		seen[p.ID] = struct{}{}
		if m, ok := s.store.Get(p.ID); ok {
			if m.PayloadType() != p.PayloadType {
				return &ContractError{TokenID: p.ID, Reason: fmt.Sprintf("payload type changed from %s to %s", m.PayloadType(), p.PayloadType)}
			}
		} else if !knownPayloadType(p.PayloadType) {
			return &ContractError{TokenID: p.ID, Reason: fmt.Sprintf("unknown payload type %q", p.PayloadType)}
		}
	}

	var retired []Model
	for _, id := range s.store.IDs() {
		if _, ok := seen[id]; ok {
			continue
		}
		if m, ok := s.store.evict(id); ok {
			m.base().retire()
			retired = append(retired, m)
		}
	}

	models := make([]Model, 0, len(payloads))
	var created []Model
	moved := false
	for _, p := range payloads {
		if m, ok := s.store.Get(p.ID); ok {
			if m.Path() != p.Path {
				moved = true
			}
			if err := m.base().update(p); err != nil {
				return err
			}
			models = append(models, m)
			continue
		}
		m, err := newModel(p, s.env)
		if err != nil {
			return err
		}
		s.store.put(m)
		created = append(created, m)
		models = append(models, m)
	}

	if !s.tokens.Set(models) && moved {
		s.layout.Update(func(n uint64) uint64 { return n + 1 })
	}
	if len(created) > 0 || len(retired) > 0 {
		s.log.Debug("token set changed", zap.String("source", s.name),
			zap.Int("created", len(created)), zap.Int("retired", len(retired)), zap.Int("total", len(models)))
	}
	if s.observer != nil {
		for _, m := range retired {
			s.observer.TokenRetired(m)
		}
		for _, m := range created {
			s.observer.TokenCreated(m)
		}
	}
	return nil
}
