package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"checkin/internal/checkin"
	"checkin/internal/checkin/handler"
	checkinmetrics "checkin/internal/checkin/metrics"
	"checkin/internal/platform/config"
	"checkin/internal/platform/httpserver"
	"checkin/internal/platform/logger"
	"checkin/internal/platform/metrics"
	"checkin/internal/platform/redis"
	"checkin/internal/proof/issuer"
	"checkin/internal/proof/store/replay"
	httptransport "checkin/internal/transport/http"
	auditmemory "checkin/pkg/platform/audit/store/memory"
	"checkin/pkg/platform/audit/publisher"
)

const (
	auditBufferSize = 1024
	purgeInterval   = time.Minute
)

func main() {
	configPath := flag.String("config", os.Getenv("CHECKIN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "checkin: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditPublisher := publisher.NewPublisher(auditmemory.NewInMemoryStore(),
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(log),
	)
	defer auditPublisher.Close()

	opts := []checkin.Option{
		checkin.WithTTL(cfg.Proof.TTL),
		checkin.WithLogger(log),
		checkin.WithMetrics(checkinmetrics.New()),
		checkin.WithAuditPublisher(auditPublisher),
	}
	if cfg.Issuer.Enabled() {
		signer, err := issuer.New(cfg.Issuer.Key, cfg.Issuer.Name)
		if err != nil {
			return fmt.Errorf("init issuer: %w", err)
		}
		opts = append(opts, checkin.WithEnvelope(signer))
	}

	g, gctx := errgroup.WithContext(ctx)
	routerOpts := []httptransport.Option{
		httptransport.WithLogger(log),
		httptransport.WithMetrics(metrics.New()),
	}

	guard, closer, err := openReplayGuard(gctx, cfg, log, g, &routerOpts)
	if err != nil {
		return err
	}
	defer closeLogged(log, "replay store", closer)
	if guard != nil {
		opts = append(opts, checkin.WithReplayGuard(guard))
	}

	service := checkin.New(opts...)
	router := httptransport.NewRouter(
		[]httptransport.Registrar{handler.New(service, log)},
		routerOpts...,
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting checkin",
		"addr", cfg.Server.Addr,
		"proof_ttl", cfg.Proof.TTL.String(),
		"replay_store", cfg.Replay.Store,
		"signed_artifacts", cfg.Issuer.Enabled(),
	)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, log, cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("checkin stopped")
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func closeLogged(log *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close "+name, "error", err)
	}
}

// openReplayGuard builds the configured replay backend, registers its health
// check and any background maintenance on g.
func openReplayGuard(ctx context.Context, cfg config.Config, log *slog.Logger, g *errgroup.Group, routerOpts *[]httptransport.Option) (checkin.ReplayGuard, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch cfg.Replay.Store {
	case config.ReplayStoreNone:
		log.Warn("replay protection disabled")
		return nil, noop, nil

	case config.ReplayStoreRedis:
		client, err := redis.New(ctx, cfg.Replay.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		*routerOpts = append(*routerOpts, httptransport.WithHealthCheck(client.Health))
		return replay.NewRedisStore(client.Client), client, nil

	case config.ReplayStorePostgres:
		db, err := sql.Open("postgres", cfg.Replay.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		store := replay.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate replay store: %w", err)
		}
		*routerOpts = append(*routerOpts, httptransport.WithHealthCheck(db.PingContext))
		g.Go(func() error {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					n, err := store.Purge(ctx)
					if err != nil {
						log.Warn("replay purge failed", "error", err)
						continue
					}
					log.Debug("replay purge", "removed", n)
				}
			}
		})
		return store, db, nil

	default:
		store := replay.NewInMemoryStore()
		g.Go(func() error {
			ticker := time.NewTicker(purgeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					log.Debug("replay sweep", "removed", store.Sweep())
				}
			}
		})
		return store, noop, nil
	}
}
