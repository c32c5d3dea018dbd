package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/aruba-countdown/internal/api"
	"github.com/neexbeast/aruba-countdown/internal/cache"
	"github.com/neexbeast/aruba-countdown/internal/config"
	"github.com/neexbeast/aruba-countdown/internal/countdown"
	"github.com/neexbeast/aruba-countdown/internal/insight"
	"github.com/neexbeast/aruba-countdown/internal/offline"
	"github.com/neexbeast/aruba-countdown/internal/publish"
	"github.com/neexbeast/aruba-countdown/internal/session"
	"github.com/neexbeast/aruba-countdown/internal/storage"
)

const shutdownTimeout = 30 * time.Second

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "aruba-countdown",
		Short:         "Countdown to the family trip to Aruba",
		Long:          "Serves the trip countdown, destination insights, checklist and offline assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(countdownCmd())
	rootCmd.AddCommand(insightsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

func countdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countdown",
		Short: "Print the time left until the trip",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			state, ok := countdown.NewEngine(cfg.TargetTime).Tick()
			return printJSON(cmd, map[string]any{
				"target":  cfg.TargetTime,
				"days":    state.Days,
				"hours":   state.Hours,
				"minutes": state.Minutes,
				"seconds": state.Seconds,
				"expired": !ok,
			})
		},
	}
}

func insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Fetch destination insights once and print the outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			log := newLogger(cfg.Log.Level)

			out := newFetcher(cfg, log).Fetch(cmd.Context())
			return printJSON(cmd, map[string]any{
				"status":     out.Status,
				"missing":    out.Missing,
				"highlights": out.Bundle.Highlights(),
				"bundle":     out.Bundle,
			})
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg.Log.Level)

	if err := serve(cmd.Context(), cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		return err
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Checklist: storage.NewStaticChecklist(),
		Share: api.ShareSettings{
			Title:       cfg.Share.Title,
			Destination: cfg.Trip.Destination,
			URL:         cfg.Share.URL,
		},
	}
	var checks api.HealthChecks
	var sessionOpts []session.Option

	// PostgreSQL: checklist and fetch history.
	if cfg.Database.URL != "" {
		pool, err := storage.Connect(ctx, cfg.Database.URL)
		if err != nil {
			log.Error("database unavailable, using static checklist", "err", err)
		} else {
			defer pool.Close()

			migrations, err := storage.Migrations(cfg.Database.Migrations)
			if err != nil {
				return fmt.Errorf("loading migrations: %w", err)
			}
			if err := storage.RunMigrations(ctx, pool, migrations); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			log.Info("migrations applied")

			repo := storage.NewRepository(pool)
			deps.Checklist = repo
			deps.History = repo
			checks.DB = &pgxPoolPinger{pool: pool}
			sessionOpts = append(sessionOpts, session.WithRecorder(repo))
		}
	}

	// Redis: offline asset cache.
	var store offline.Store
	if cfg.Redis.URL != "" {
		redisClient, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Error("redis unavailable, offline assets pass through", "err", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			store = cache.NewAssetCache(redisClient, cfg.Offline.CacheName)
			checks.Redis = &redisPingerAdapter{client: redisClient}
		}
	}
	worker := offline.NewWorker(offline.DefaultAssets, store, log)
	deps.Assets = worker

	// MQTT: countdown mirror and share target.
	pub, err := publish.NewPublisher(publish.Config{
		Enabled:     cfg.MQTT.Enabled,
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, log)
	if err != nil {
		log.Error("mqtt unavailable, share disabled", "err", err)
		pub, _ = publish.NewPublisher(publish.Config{}, log)
	}
	defer pub.Close()
	deps.Sharer = pub
	if pub.Enabled() {
		checks.MQTT = pub
		sessionOpts = append(sessionOpts, session.WithTickObserver(func(s countdown.State) {
			if err := pub.PublishCountdown(s); err != nil {
				log.Debug("publishing countdown failed", "err", err)
			}
		}))
	}

	sessionOpts = append(sessionOpts,
		session.WithTickInterval(cfg.Tick.Interval),
		session.WithLogger(log),
	)
	sess := session.New(countdown.NewEngine(cfg.TargetTime), newFetcher(cfg, log), sessionOpts...)
	deps.Session = sess

	handlers := api.NewHandlers(deps, log)
	router := api.NewRouter(handlers, cfg.Auth.BearerToken, checks, log)

	port := strconv.Itoa(cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	sess.Start(gCtx)

	g.Go(func() error {
		<-gCtx.Done()
		sess.Close()
		worker.Close()
		return nil
	})

	g.Go(func() error {
		return worker.Precache(gCtx)
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				err = fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", port, "session_id", sess.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server shut down cleanly")
	return nil
}

func newFetcher(cfg *config.Config, log *slog.Logger) *insight.Fetcher {
	client := insight.NewClientWithURL(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model)
	return insight.NewFetcher(client, cfg.Trip.Location, cfg.TargetTime.Year(),
		insight.WithTimeout(cfg.Insight.Timeout),
		insight.WithLogger(log),
	)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// pgxPoolPinger adapts pgxpool.Pool to the api.Pinger interface.
type pgxPoolPinger struct {
	pool interface {
		Ping(ctx context.Context) error
	}
}

func (p *pgxPoolPinger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// redisPingerAdapter adapts redis.Client to the api.Pinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
