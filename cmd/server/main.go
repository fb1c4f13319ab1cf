package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-study/internal/adherence"
	"github.com/p-n-ai/pai-study/internal/agent"
	"github.com/p-n-ai/pai-study/internal/api"
	"github.com/p-n-ai/pai-study/internal/catalog"
	"github.com/p-n-ai/pai-study/internal/chat"
	"github.com/p-n-ai/pai-study/internal/notify"
	"github.com/p-n-ai/pai-study/internal/planner"
	"github.com/p-n-ai/pai-study/internal/platform/cache"
	"github.com/p-n-ai/pai-study/internal/platform/config"
	"github.com/p-n-ai/pai-study/internal/platform/database"
	"github.com/p-n-ai/pai-study/internal/schedule"
)

const reminderResync = 15 * time.Minute

// readinessCheck pings one backing service.
type readinessCheck func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	clock := func() time.Time { return time.Now().In(loc) }

	cat, err := catalog.NewLoader(cfg.CatalogPath)
	if err != nil {
		return err
	}
	templates, err := planner.LoadTemplates(cfg.Planner.TemplatesPath)
	if err != nil {
		return err
	}
	slots, err := planner.ParseSlots(cfg.Planner.Slots)
	if err != nil {
		return err
	}
	offsets, err := cfg.ReviewOffsets()
	if err != nil {
		return err
	}
	lookAhead := cfg.Planner.LookAheadDays
	if lookAhead == 0 {
		lookAhead = -1 // target day only
	}

	storeCfg := schedule.Config{
		Reviews: planner.NewReviewScheduler(planner.ReviewConfig{
			Catalog:         cat,
			Slots:           slots,
			Offsets:         offsets,
			LookAheadDays:   lookAhead,
			PomodoroMinutes: cfg.Planner.PomodoroMinutes,
		}),
		Now: clock,
	}

	checks := map[string]readinessCheck{}
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL, cfg.Cache.TTLHours)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		p, err := schedule.NewRedisPersistence(c.Client, c.TTL)
		if err != nil {
			return err
		}
		storeCfg.Persistence = p
		checks["cache"] = c.HealthCheck
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		p, err := schedule.NewPostgresPersistence(db.Pool)
		if err != nil {
			return err
		}
		storeCfg.Persistence = p
		storeCfg.Events = schedule.NewPostgresEventLogger(db.Pool)
		checks["database"] = db.HealthCheck
	default:
		slog.Warn("using in-memory storage, schedules are lost on restart")
	}
	slog.Info("storage configured", "backend", cfg.Storage.Backend)

	sessions := schedule.NewSessions(storeCfg)
	reports := adherence.NewEngine()

	gw := chat.NewGateway()
	hub := chat.NewWebSocketChannel()
	gw.Register(chat.ChannelWebSocket, hub)
	if cfg.HasTelegram() {
		tg, err := chat.NewTelegramChannel(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		gw.Register(chat.ChannelTelegram, tg)
	}

	reminders := notify.NewScheduler(notify.Config{
		Notifier: notify.GatewayNotifier{Gateway: gw},
		Lead:     time.Duration(cfg.Notify.LeadMinutes) * time.Minute,
		Location: loc,
		Now:      clock,
	})
	onChange := func(userID string, blocks []planner.StudyBlock) {
		if cfg.Notify.Enabled {
			reminders.Sync(userID, blocks, clock())
		}
	}

	engine := agent.NewEngine(agent.EngineConfig{
		Sessions: sessions,
		Reports:  reports,
		Location: loc,
		Now:      clock,
		OnChange: onChange,
	})

	apiServer, err := api.New(api.Config{
		Sessions: sessions,
		Generator: planner.NewGenerator(planner.GeneratorConfig{
			Slots:           slots,
			Templates:       templates,
			DefaultTemplate: cfg.Planner.DefaultTemplate,
			PomodoroMinutes: cfg.Planner.PomodoroMinutes,
			Now:             clock,
		}),
		Catalog:     cat,
		Reports:     reports,
		WebSocket:   hub,
		HorizonDays: cfg.Planner.HorizonDays,
		Location:    loc,
		Now:         clock,
		OnChange:    onChange,
	})
	if err != nil {
		return err
	}

	mux := newMux(checks)
	apiServer.Register(mux)

	if err := gw.StartAll(ctx, engine.Handler(ctx, gw)); err != nil {
		return err
	}
	defer gw.StopAll()

	if cfg.Notify.Enabled {
		go reminders.Run(ctx, reminderResync, openBlocks(sessions))
	}
	defer reminders.Stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "channels", gw.Channels())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// openBlocks lists the blocks of every user with an open session.
func openBlocks(sessions *schedule.Sessions) func(ctx context.Context) map[string][]planner.StudyBlock {
	return func(ctx context.Context) map[string][]planner.StudyBlock {
		out := make(map[string][]planner.StudyBlock)
		for _, userID := range sessions.Users() {
			st, err := sessions.Open(ctx, userID)
			if err != nil {
				slog.Warn("reminder resync skipped user", "user_id", userID, "error", err)
				continue
			}
			out[userID] = st.Blocks()
		}
		return out
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newMux creates the HTTP router with health check endpoints.
func newMux(checks map[string]readinessCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(checks))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks map[string]readinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
		}
		sort.Strings(names)

		failed := map[string]string{}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				failed[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}
