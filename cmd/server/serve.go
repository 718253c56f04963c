package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omega-realm/pokeidle/internal/aggregate"
	"github.com/omega-realm/pokeidle/internal/auth"
	"github.com/omega-realm/pokeidle/internal/config"
	"github.com/omega-realm/pokeidle/internal/database"
	"github.com/omega-realm/pokeidle/internal/game"
	"github.com/omega-realm/pokeidle/internal/handlers"
	"github.com/omega-realm/pokeidle/internal/hub"
	"github.com/omega-realm/pokeidle/internal/middleware"
	"github.com/omega-realm/pokeidle/internal/models"
	"github.com/omega-realm/pokeidle/internal/persist"
	"github.com/omega-realm/pokeidle/internal/redis"
	"github.com/omega-realm/pokeidle/internal/refdata"
	"github.com/omega-realm/pokeidle/internal/social"
	"github.com/omega-realm/pokeidle/internal/ws"
)

func newServeCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the game hub and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// backends are the storage collaborators chosen by configuration
type backends struct {
	players  handlers.PlayerStore
	store    persist.Store
	catalog  game.Catalog
	guilds   aggregate.GuildStore
	social   social.Store
	board    aggregate.Backend
	backlog  persist.Backlog
	presence *redis.Presence
	checks   []handlers.HealthCheck
	closers  []func() error

	rebuild func(ctx context.Context) ([]models.PlayerStats, map[int64][]int, error)
	graph   func(ctx context.Context) ([][2]int64, [][2]int64, error)
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.Store {
	case config.StorePostgres:
		db, err := database.NewConnection(database.LoadConfigFromEnv(), log)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if cfg.AutoMigrate {
			if err := migrate(ctx, db, log); err != nil {
				b.close()
				return nil, err
			}
		}
		players := database.NewPlayerStore(db)
		socialStore := database.NewSocialStore(db)
		b.players, b.store = players, players
		b.catalog = database.NewCatalog(db)
		b.guilds = database.NewGuildStore(db)
		b.social = socialStore
		b.checks = append(b.checks, handlers.HealthCheck{Name: "postgres", Check: db.PingContext})
		b.rebuild = func(ctx context.Context) ([]models.PlayerStats, map[int64][]int, error) {
			stats, err := players.ListPlayerStats(ctx)
			if err != nil {
				return nil, nil, err
			}
			dex, err := players.Pokedexes(ctx)
			return stats, dex, err
		}
		b.graph = socialStore.LoadGraph
	default:
		log.Warn("using in-memory player store, state is lost on exit")
		mem := persist.NewMemoryStore()
		b.players, b.store = mem, mem
		b.catalog = refdata.Builtin()
		b.guilds = aggregate.NewMemoryGuildStore()
	}

	if cfg.UseRedis {
		rcfg := redis.LoadConfigFromEnv()
		client, err := redis.NewClient(rcfg, log)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.board = redis.NewAggregateBackend(client, rcfg.KeyPrefix)
		b.backlog = redis.NewBacklog(client, rcfg.KeyPrefix)
		b.presence = redis.NewPresence(client, rcfg.KeyPrefix, cfg.PresenceTTL)
		b.checks = append(b.checks, handlers.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	} else {
		log.Warn("redis disabled, leaderboards are local to this process")
		b.board = aggregate.NewMemoryBackend()
	}
	return b, nil
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	graph := social.NewGraph(b.social)
	if b.graph != nil {
		friends, blocks, err := b.graph(ctx)
		if err != nil {
			return fmt.Errorf("failed to load social graph: %w", err)
		}
		graph.Seed(friends, blocks)
		log.Info("social graph loaded", zap.Int("friendships", len(friends)), zap.Int("blocks", len(blocks)))
	}

	agg := aggregate.New(b.board, b.guilds, log)
	if b.rebuild != nil {
		stats, dex, err := b.rebuild(ctx)
		if err != nil {
			return fmt.Errorf("failed to load player stats: %w", err)
		}
		if err := agg.Rebuild(ctx, stats, dex); err != nil {
			return err
		}
	}

	// saves outlive the signal context so shutdown can still flush them
	workCtx, stopWork := context.WithCancel(context.Background())
	defer stopWork()
	saver := persist.NewSaver(b.store, b.backlog, cfg.Saver, log)
	saver.Start(workCtx)
	if n, err := saver.ReplayBacklog(ctx); err != nil {
		log.Error("backlog replay failed", zap.Error(err))
	} else if n > 0 {
		log.Info("replaying save backlog", zap.Int("players", n))
	}

	deps := hub.Deps{
		Engine:     &game.Engine{Catalog: b.catalog, Tuning: cfg.Tuning, Salt: cfg.Salt},
		Store:      b.store,
		Backlog:    b.backlog,
		Saver:      saver,
		Aggregator: agg,
		Social:     graph,
		Logger:     log,
	}
	var counter handlers.OnlineCounter
	if b.presence != nil {
		deps.Presence = b.presence
		counter = b.presence
	}
	h := hub.New(cfg.Hub, deps)

	go h.RunLeaderboards(ctx)
	if b.presence != nil {
		go refreshPresence(ctx, b.presence, h, cfg.PresenceTTL, log)
	}

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	live := func(playerID int64) (*models.PlayerState, bool) {
		s, ok := h.Session(playerID)
		if !ok {
			return nil, false
		}
		return s.Snapshot(), true
	}
	router := newRouter(routes{
		ws:      ws.NewHandler(h, tokens, cfg.WS, log),
		boards:  handlers.NewLeaderboardHandler(agg, log),
		players: handlers.NewPlayerHandler(b.players, b.catalog, live, cfg.Starter, log),
		status:  handlers.NewStatusHandler(h, counter, log, b.checks...),
		tokens:  tokens,
		log:     log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Duration("tick", cfg.Hub.TickInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server failed", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := h.Shutdown(shutdownCtx); err != nil {
		log.Error("hub shutdown incomplete", zap.Error(err))
	}
	log.Info("stopped")
	return serveErr
}

type routes struct {
	ws      *ws.Handler
	boards  *handlers.LeaderboardHandler
	players *handlers.PlayerHandler
	status  *handlers.StatusHandler
	tokens  *auth.Manager
	log     *zap.Logger
}

func newRouter(rt routes) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(rt.log.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", rt.status.Health)
	r.Get("/ws", rt.ws.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		r.Get("/leaderboard", rt.boards.GetLeaderboard)
		r.Get("/online", rt.status.GetOnline)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(rt.tokens))
			r.Get("/leaderboard/rank", rt.boards.GetRank)
			r.Get("/player", rt.players.GetPlayer)
			r.Post("/player", rt.players.CreatePlayer)
		})
	})
	return r
}

// refreshPresence keeps the presence keys of attached players from expiring
func refreshPresence(ctx context.Context, p *redis.Presence, h *hub.Hub, ttl time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(max(ttl/3, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx, h.Online()); err != nil {
				log.Warn("presence refresh failed", zap.Error(err))
			}
		}
	}
}
