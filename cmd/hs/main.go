package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"hoursync/internal/app"
	"hoursync/internal/config"
	"hoursync/internal/db"
	"hoursync/internal/migrate"
	"hoursync/internal/orchestration"
	"hoursync/internal/repo"
	"hoursync/internal/server"
	"hoursync/internal/tokens"
)

var rootCmd = &cobra.Command{
	Use:   "hs",
	Short: "Hoursync CLI",
	Long: `Hoursync mirrors the token graph of a running game and drives recipes at its situations.
- Tokens: element stacks, situations and terrains, polled from the game's local API and kept with stable identity.
- Visibility: a token is visible when it sits in an unshrouded terrain or under an always-visible path.
- Orchestration: pick a recipe, bind a situation, fill its slots, execute, then conclude to harvest the output.
- Journal: token lifecycle and orchestration commands are recorded in .hoursync/hoursync.db; view with 'hs log tail'.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("HOURSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/hoursync.yml)")
	rootCmd.PersistentFlags().String("base-url", "", "game API base URL (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"workspace", "config", "base-url", "json", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(tokensCmd())
	rootCmd.AddCommand(situationsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(craftCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config lives in hoursync.yml: where the game listens, how fast to poll, which paths are always visible, and which webhooks receive journal events.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default hoursync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func configValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := loadConfig()
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the game is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), false, func(ctx context.Context, rt *app.Runtime) error {
				legacy, err := rt.Game.GetLegacy(ctx)
				res := map[string]any{"base_url": rt.Config.Game.BaseURL, "running": err == nil && legacy != nil}
				if err != nil {
					res["error"] = err.Error()
				}
				if legacy != nil {
					res["legacy"] = legacy.ID
					res["label"] = legacy.Label
				}
				return printJSONOrTable(res)
			})
		},
	}
}

func tokensCmd() *cobra.Command {
	var payloadType, prefix string
	var visibleOnly bool
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "List tokens from one snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				list := rt.Source.Tokens().Get()
				if visibleOnly {
					list = rt.Source.Views().Visible().Get()
				}
				var out []tokens.Model
				for _, m := range list {
					if payloadType != "" && string(m.PayloadType()) != payloadType {
						continue
					}
					if prefix != "" && !tokens.Within(m.Path(), prefix) {
						continue
					}
					out = append(out, m)
				}
				sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
				if viper.GetBool("json") {
					payloads := make([]any, 0, len(out))
					for _, m := range out {
						payloads = append(payloads, m.Payload())
					}
					return printJSON(payloads)
				}
				views := rt.Source.Views()
				tw := newTable(table.Row{"ID", "Type", "Label", "Visible", "Path"})
				for _, m := range out {
					p := m.Payload()
					tw.AppendRow(table.Row{m.ID(), p.PayloadType, p.Label, views.IsVisiblePath(p.Path), p.Path})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payloadType, "type", "", "payload type filter")
	cmd.Flags().StringVar(&prefix, "path", "", "only tokens at or below this path")
	cmd.Flags().BoolVar(&visibleOnly, "visible", false, "only visible tokens")
	return cmd
}

func situationsCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "situations",
		Short: "List visible situations from one snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSnapshot(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				var sits []*tokens.Situation
				for _, m := range rt.Source.Views().Visible().Get() {
					if sit, ok := m.(*tokens.Situation); ok && (state == "" || string(sit.State().Get()) == state) {
						sits = append(sits, sit)
					}
				}
				if viper.GetBool("json") {
					payloads := make([]any, 0, len(sits))
					for _, s := range sits {
						payloads = append(payloads, s.Payload())
					}
					return printJSON(payloads)
				}
				tw := newTable(table.Row{"ID", "Verb", "State", "Recipe", "Remaining", "Slots"})
				for _, s := range sits {
					p := s.Payload()
					tw.AppendRow(table.Row{s.ID(), p.VerbID, p.State, s.RecipeLabel().Get(), p.TimeRemaining, len(s.SlotContents().Get())})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "situation state filter")
	return cmd
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the game and print token changes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), true, func(ctx context.Context, rt *app.Runtime) error {
				known := map[string]tokens.Model{}
				unsub := rt.Source.Tokens().Subscribe(func(list []tokens.Model) {
					next := make(map[string]tokens.Model, len(list))
					for _, m := range list {
						next[m.ID()] = m
						if _, ok := known[m.ID()]; !ok {
							fmt.Printf("+ %s %s %s\n", m.ID(), m.PayloadType(), m.Path())
						}
					}
					for id, m := range known {
						if _, ok := next[id]; !ok {
							fmt.Printf("- %s %s %s\n", id, m.PayloadType(), m.Path())
						}
					}
					known = next
				})
				defer unsub()
				return rt.Run(ctx)
			})
		},
	}
}

func craftCmd() *cobra.Command {
	var recipeID, situationID string
	var autofill, execute bool
	cmd := &cobra.Command{
		Use:   "craft",
		Short: "Prepare a recipe at a situation from one snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			if situationID == "" {
				return fmt.Errorf("--situation required")
			}
			return withSnapshot(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				recipe, err := rt.Recipe(ctx, recipeID)
				if err != nil {
					return err
				}
				m, ok := rt.Source.Store().Get(situationID)
				if !ok {
					return fmt.Errorf("situation %s not found", situationID)
				}
				sit, ok := m.(*tokens.Situation)
				if !ok {
					return fmt.Errorf("token %s is not a situation", situationID)
				}
				defer rt.Session.Close(ctx)
				o := rt.Session.OpenForSituation(ctx, sit, recipe)
				if autofill {
					n, err := rt.Session.Autofill(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("filled %d slot(s)\n", n)
				}
				printSlots(o)
				if !execute {
					return nil
				}
				if _, err := rt.Session.Execute(ctx); err != nil {
					return err
				}
				fmt.Printf("executed %s at %s\n", o.Label().Get(), sit.ID())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&recipeID, "recipe", "", "recipe id (empty for freeform)")
	cmd.Flags().StringVar(&situationID, "situation", "", "situation token id")
	cmd.Flags().BoolVar(&autofill, "autofill", false, "fill empty slots with the best candidates")
	cmd.Flags().BoolVar(&execute, "execute", false, "execute after filling")
	return cmd
}

func printSlots(o orchestration.Orchestration) {
	fmt.Printf("%s [%s]\n", o.Label().Get(), o.Phase())
	tw := newTable(table.Row{"Slot", "Label", "Locked", "Assigned", "Status", "Candidates"})
	for _, slot := range o.Slots().Get() {
		assigned := ""
		if s := slot.Assignment().Get(); s != nil {
			assigned = s.ID()
		}
		tw.AppendRow(table.Row{slot.ID(), slot.Spec().Get().Label, slot.Locked(), assigned, slot.Status().Get(), len(slot.Available().Get())})
	}
	tw.Render()
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Journal events"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "Time", "Type", "Entity", "Payload"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.EntityKind + ":" + e.EntityID, e.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter (prefix.* allowed)")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&f.SessionID, "session", "", "session id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Sync with the game and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), true, func(ctx context.Context, rt *app.Runtime) error {
				handler, err := server.New(server.Config{Runtime: rt, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() error { return rt.Run(gctx) })
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
				g.Go(func() error {
					fmt.Printf("Serving Hoursync API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				return g.Wait()
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func configPath() string {
	if p := viper.GetString("config"); p != "" {
		return p
	}
	return config.Path(viper.GetString("workspace"))
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.FromFile(p)
	} else {
		cfg, err = config.Load(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if u := viper.GetString("base-url"); u != "" {
		cfg.Game.BaseURL = u
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if viper.GetBool("verbose") {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// withRuntime builds a runtime; the journal is only opened when journal is
// true and the config enables it.
func withRuntime(ctx context.Context, journal bool, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !journal {
		cfg.Journal.Enabled = false
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()
	rt, err := app.New(viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

// withSnapshot polls the game once before calling fn.
func withSnapshot(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	return withRuntime(ctx, true, func(ctx context.Context, rt *app.Runtime) error {
		if err := rt.Probe.Poll(ctx); err != nil {
			return err
		}
		if !rt.Probe.Running().Get() {
			return fmt.Errorf("game at %s is not running a legacy", rt.Config.Game.BaseURL)
		}
		if err := rt.Source.Poll(ctx); err != nil {
			return err
		}
		return fn(ctx, rt)
	})
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
