package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gofish/internal/config"
	"github.com/cory-johannsen/gofish/internal/game/dice"
	"github.com/cory-johannsen/gofish/internal/game/room"
	"github.com/cory-johannsen/gofish/internal/game/session"
	"github.com/cory-johannsen/gofish/internal/gateway"
	"github.com/cory-johannsen/gofish/internal/observability"
	"github.com/cory-johannsen/gofish/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "configs/dev.yaml", "path to configuration file; empty uses defaults and environment")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment is read")

	return cmd
}

// rulesFrom maps the game configuration onto table rules.
func rulesFrom(g config.GameConfig) room.Rules {
	return room.Rules{
		MinPlayers:           g.MinPlayers,
		MaxPlayers:           g.MaxPlayers,
		OctopusChance:        g.OctopusChance,
		DeckSwapChance:       g.DeckSwapChance,
		EarthquakeChance:     g.EarthquakeChance,
		OctopusSkipDelay:     g.OctopusSkipDelay,
		DeckSwapRefreshDelay: g.DeckSwapRefreshDelay,
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	start := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := observability.NewLogger(cfg.Logging, "gofishd")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	src := dice.NewCryptoSource()
	if cfg.Game.Seed != 0 {
		src = dice.NewSeededSource(cfg.Game.Seed)
		logger.Warn("deterministic seed in use", zap.Uint64("seed", cfg.Game.Seed))
	}
	roller := dice.NewRoller(src, logger.Named("dice"))

	rules := rulesFrom(cfg.Game)
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("game rules: %w", err)
	}

	rooms := room.NewStore(roller, rules, logger.Named("room"))
	sessions := session.NewRegistry()
	hub := gateway.NewHub()
	scheduler := gateway.NewTimerScheduler()
	stats := gateway.NewStats(rooms, sessions, hub)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, stats)

	ac := &gateway.ActionContext{
		Rooms:     rooms,
		Sessions:  sessions,
		Hub:       hub,
		Scheduler: scheduler,
		Logger:    logger.Named("gateway"),
		Metrics:   metrics,
	}
	gw := gateway.New(ac, gateway.DefaultActionRegistry())
	transport := gateway.NewTransport(gw, cfg.HTTP, reg, stats)
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           transport.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lifecycle := server.NewLifecycle(logger, cfg.HTTP.ShutdownTimeout)

	if cfg.Health.Enabled() {
		lifecycle.Add("health", server.NewHealthServer(cfg.Health.Addr(), logger.Named("health")))
	}

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", httpServer.Addr, err)
			}
			logger.Info("http server listening", zap.String("addr", lis.Addr().String()))
			if err := httpServer.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func(ctx context.Context) {
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
			if err := transport.Close(ctx); err != nil {
				logger.Warn("closing websockets", zap.Error(err))
			}
			scheduler.Stop()
		},
	})

	if cfg.Game.AbandonedRoomTTL > 0 {
		sweepCtx, cancelSweep := context.WithCancel(ctx)
		sweeper := gateway.NewSweeper(ac, cfg.Game.SweepInterval, cfg.Game.AbandonedRoomTTL)
		lifecycle.Add("sweeper", &server.FuncService{
			StartFn: func() error {
				sweeper.Start(sweepCtx)
				<-sweepCtx.Done()
				return nil
			},
			StopFn: func(context.Context) { cancelSweep() },
		})
	}

	logger.Info("gofishd initialized",
		zap.String("version", version),
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.Bool("health", cfg.Health.Enabled()),
		zap.Duration("abandoned_room_ttl", cfg.Game.AbandonedRoomTTL),
		zap.Duration("startup", time.Since(start)),
	)

	return lifecycle.Run(ctx)
}
