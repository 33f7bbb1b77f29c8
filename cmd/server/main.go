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

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/talkroom/internal/adapters/auth"
	router "github.com/dkeye/talkroom/internal/adapters/http"
	"github.com/dkeye/talkroom/internal/adapters/presence"
	wssignal "github.com/dkeye/talkroom/internal/adapters/signal"
	"github.com/dkeye/talkroom/internal/adapters/store/memory"
	"github.com/dkeye/talkroom/internal/adapters/store/mongostore"
	"github.com/dkeye/talkroom/internal/app"
	"github.com/dkeye/talkroom/internal/app/orch"
	"github.com/dkeye/talkroom/internal/config"
	"github.com/dkeye/talkroom/internal/core"
	"github.com/dkeye/talkroom/internal/domain"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	var closers []func(context.Context) error
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer ccancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](cctx); err != nil {
				log.Error().Err(err).Msg("close backend")
			}
		}
	}()

	var (
		store    core.MembershipStore
		presStor core.PresenceStore
	)
	switch cfg.Store.Backend {
	case config.StoreMongo:
		db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:              cfg.Mongo.URI,
			Database:         cfg.Mongo.Database,
			AppName:          "talkroom",
			OperationTimeout: cfg.Mongo.OperationTimeout,
		})
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		closers = append(closers, db.Close)
		store, presStor = db, db
	default:
		mem := memory.NewMemStore()
		for _, seed := range cfg.Store.Rooms {
			mem.PutRoom(seedRoom(seed))
		}
		log.Info().Int("rooms", len(cfg.Store.Rooms)).Msg("memory store seeded")
		store, presStor = mem, mem
	}

	if cfg.Presence.Backend == config.PresenceRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, pcancel := context.WithTimeout(ctx, shutdownTimeout)
		err := rdb.Ping(pctx).Err()
		pcancel()
		if err != nil {
			_ = rdb.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		presStor = presence.NewPresence(rdb)
	}

	reg := app.NewRegistry(app.NewGroupManager())
	o := &orch.Orchestrator{
		Registry: reg,
		Store:    store,
		Presence: presStor,
		Speaking: app.NewSpeakingTracker(),
		Policy:   app.SimplePolicy{},
		Limiter:  wssignal.NewRoomRateLimiter(cfg.RateLimit.AudioChunks, cfg.RateLimit.Interval),
	}
	verifier := auth.NewJWTVerifier(cfg.JWT.Secret)

	r := router.SetupRouter(ctx, cfg, o, verifier)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("talkroom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		reg.CancelAll()
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		return nil
	})
	return g.Wait()
}

func seedRoom(s config.RoomSeed) domain.Room {
	room := domain.Room{
		ID:         domain.RoomID(s.ID),
		Name:       s.Name,
		MaxMembers: s.MaxMembers,
	}
	for _, m := range s.Members {
		room.Members = append(room.Members, domain.UserID(m))
	}
	for _, a := range s.Admins {
		room.Admins = append(room.Admins, domain.UserID(a))
	}
	return room
}
