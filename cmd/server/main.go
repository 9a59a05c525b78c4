// Command server runs the portfolio governance API plus its background
// workers: the expiration sweeper and the audit outbox publisher.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"keystone/internal/alert"
	alerthandler "keystone/internal/alert/handler"
	alertmetrics "keystone/internal/alert/metrics"
	alertservice "keystone/internal/alert/service"
	"keystone/internal/audit"
	"keystone/internal/audit/outbox"
	"keystone/internal/authz"
	authzhandler "keystone/internal/authz/handler"
	"keystone/internal/governance"
	"keystone/internal/lock"
	lockhandler "keystone/internal/lock/handler"
	lockmetrics "keystone/internal/lock/metrics"
	lockservice "keystone/internal/lock/service"
	"keystone/internal/platform/config"
	"keystone/internal/platform/httpserver"
	"keystone/internal/platform/logger"
	platformmetrics "keystone/internal/platform/metrics"
	platformredis "keystone/internal/platform/redis"
	"keystone/internal/property"
	propertyhandler "keystone/internal/property/handler"
	"keystone/internal/sweeper"
	sweepermetrics "keystone/internal/sweeper/metrics"
	httptransport "keystone/internal/transport/http"
)

const outboxInterval = 5 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	stores := governance.Stores{
		Alerts: alert.NewPostgres(db),
		Locks:  lock.NewPostgres(db),
		Flags:  property.NewPostgres(db),
		Audit:  audit.NewPostgres(db),
	}
	txRunner := newGovernancePostgresTx(db)
	recorder := audit.NewRecorder(stores.Audit)
	flagSync := property.NewSynchronizer(stores.Flags, stores.Locks)

	engine, err := lockservice.New(txRunner, stores, flagSync, recorder,
		lockservice.WithLogger(log),
		lockservice.WithMetrics(lockmetrics.New()),
	)
	if err != nil {
		return err
	}

	bands := alert.SeverityBands{
		Warning:  cfg.Governance.WarningVariance,
		Critical: cfg.Governance.CriticalVariance,
	}
	blockedActions, err := lock.ParseActions(cfg.Governance.BlockedActions)
	if err != nil {
		return err
	}
	alerts, err := alertservice.New(txRunner, stores, engine, recorder, bands, blockedActions,
		alertservice.WithLogger(log),
		alertservice.WithMetrics(alertmetrics.New()),
	)
	if err != nil {
		return err
	}

	authorizer, err := authz.New(stores.Locks, authz.NewAlertCommittees(stores.Alerts),
		authz.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sweepOpts := []sweeper.Option{
		sweeper.WithLogger(log),
		sweeper.WithMetrics(sweepermetrics.New(prometheus.DefaultRegisterer)),
	}
	if redisClient != nil {
		sweepOpts = append(sweepOpts, sweeper.WithLeader(
			sweeper.NewLeaderLock(redisClient.Client, "keystone:sweeper:leader", cfg.Sweeper.LeaderTTL),
		))
	}
	sweep, err := sweeper.New(alerts, engine,
		cfg.Sweeper.Interval, cfg.Sweeper.AlertMaxAge, cfg.Sweeper.LockMaxAge,
		sweepOpts...,
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(
		log,
		platformmetrics.New(prometheus.DefaultRegisterer),
		prometheus.DefaultGatherer,
		healthCheck(db, redisClient),
		alerthandler.New(alerts, log),
		lockhandler.New(engine, log),
		authzhandler.New(authorizer),
		propertyhandler.New(flagSync),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		log.Info("starting expiration sweeper", "interval", cfg.Sweeper.Interval)
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := outbox.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()

		worker := outbox.NewWorker(stores.Audit, publisher, outboxInterval, log)
		group.Go(func() error {
			log.Info("starting audit outbox worker", "topic", cfg.Kafka.Topic)
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

func healthCheck(db *sql.DB, redisClient *platformredis.Client) httptransport.HealthChecker {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			http.Error(w, `{"status":"unhealthy","reason":"postgres"}`, http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, `{"status":"unhealthy","reason":"redis"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
