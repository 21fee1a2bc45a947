// Package app assembles the sync engine from a workspace config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hoursync/internal/config"
	"hoursync/internal/db"
	"hoursync/internal/domain"
	"hoursync/internal/events"
	"hoursync/internal/gameapi"
	"hoursync/internal/migrate"
	"hoursync/internal/orchestration"
	"hoursync/internal/relay"
	"hoursync/internal/repo"
	"hoursync/internal/scheduler"
	"hoursync/internal/tokens"
)

// Game is everything the runtime asks of the game process. *gameapi.Client
// implements it.
type Game interface {
	tokens.API
	tokens.LegacyAPI
	orchestration.API
	GetRecipe(ctx context.Context, id string) (domain.Recipe, error)
}

// Runtime owns one synchronized view of the game.
type Runtime struct {
	Config    *config.Config
	Log       *zap.Logger
	Game      Game
	Scheduler *scheduler.Scheduler
	Probe     *tokens.Probe
	Source    *tokens.Source
	Session   *orchestration.Session
	// Repo is nil when the journal is disabled.
	Repo  *repo.Repo
	Relay *relay.Relay

	db *sql.DB
}

// Option configures New.
type Option func(*options)

type options struct {
	game Game
	now  func() time.Time
}

// WithGame replaces the HTTP game client.
func WithGame(g Game) Option {
	return func(o *options) { o.game = g }
}

// New builds a runtime. The journal database is opened under workspace when
// cfg.Journal.Enabled is set.
func New(workspace string, cfg *config.Config, log *zap.Logger, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.game == nil {
		client := gameapi.New(cfg.Game.BaseURL)
		if cfg.Game.Timeout > 0 {
			client.Timeout = cfg.Game.Timeout
		}
		o.game = client
	}

	rt := &Runtime{Config: cfg, Log: log, Game: o.game}
	var journal *events.Journal
	if cfg.Journal.Enabled {
		conn, err := db.Open(db.Config{Workspace: workspace})
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		if err := migrate.Migrate(conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		rt.db = conn
		rt.Repo = &repo.Repo{DB: conn}
		journal = &events.Journal{Writer: events.Writer{DB: conn, Now: o.now}, Log: log.Named("journal")}
		rt.Relay = relay.New(rt.Repo, cfg.Webhooks, log.Named("relay"))
	}

	rt.Scheduler = scheduler.New(
		scheduler.WithCycle(cfg.Polling.Cycle),
		scheduler.WithMinDelay(cfg.Polling.MinDelay),
		scheduler.WithIdle(cfg.Polling.Idle),
		scheduler.WithLogger(log.Named("scheduler")),
	)
	rt.Probe = tokens.NewProbe(o.game, log.Named("probe"))

	srcOpts := []tokens.Option{
		tokens.WithLogger(log.Named("tokens")),
		tokens.WithFilter(gameapi.TokensFilter{
			PathPrefixes: cfg.Sync.PathPrefixes,
			PayloadTypes: cfg.PayloadTypes(),
		}),
		tokens.WithAlwaysVisible(cfg.Visibility.AlwaysVisible),
	}
	sessOpts := []orchestration.SessionOption{orchestration.WithLogger(log.Named("orchestration"))}
	if journal != nil {
		srcOpts = append(srcOpts, tokens.WithObserver(journal))
		sessOpts = append(sessOpts, orchestration.WithRecorder(journal))
	}
	rt.Source = tokens.NewSource(tokens.NewStore(), o.game, srcOpts...)
	rt.Session = orchestration.NewSession(o.game, rt.Source, sessOpts...)
	return rt, nil
}

// Recipe looks up a recipe in the game's compendium. An empty id means no
// recipe.
func (rt *Runtime) Recipe(ctx context.Context, id string) (*domain.Recipe, error) {
	if id == "" {
		return nil, nil
	}
	r, err := rt.Game.GetRecipe(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get recipe %s: %w", id, err)
	}
	return &r, nil
}

// Run polls until ctx is done or the token source reports a contract
// violation, in which case that error is returned.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopProbe := rt.Scheduler.Register("probe", throttle(rt.Probe.Poll, rt.Config.Polling.ProbeInterval, time.Now))
	defer stopProbe()
	if rt.Relay != nil {
		stopRelay := rt.Scheduler.Register("relay", rt.Relay.Dispatch)
		defer stopRelay()
	}
	unfollow := rt.Source.Follow(rt.Scheduler, rt.Probe.Running())
	defer func() {
		unfollow()
		rt.Source.Stop()
	}()

	fatal := make(chan error, 1)
	unwatch := rt.Source.Fatal().Subscribe(func(err error) {
		if err == nil {
			return
		}
		select {
		case fatal <- err:
		default:
		}
	})
	defer unwatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Scheduler.Run(gctx) })
	g.Go(func() error {
		select {
		case err := <-fatal:
			return err
		case <-gctx.Done():
			return nil
		}
	})
	rt.Log.Info("sync started", zap.String("game", rt.Config.Game.BaseURL), zap.String("session", rt.Session.ID()))
	err := g.Wait()
	rt.Session.Close(context.Background())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the views and the journal database.
func (rt *Runtime) Close() error {
	rt.Source.Views().Close()
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

// throttle runs task at most once per interval. Skipped calls succeed.
func throttle(task scheduler.Task, interval time.Duration, now func() time.Time) scheduler.Task {
	var mu sync.Mutex
	var last time.Time
	return func(ctx context.Context) error {
		mu.Lock()
		t := now()
		if !last.IsZero() && t.Sub(last) < interval {
			mu.Unlock()
			return nil
		}
		last = t
		mu.Unlock()
		return task(ctx)
	}
}
