package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailtriage/internal/collab"
	"mailtriage/internal/config"
	"mailtriage/internal/graph"
	"mailtriage/internal/handlers"
	"mailtriage/internal/httpserver"
	"mailtriage/internal/llm"
	"mailtriage/internal/mqhandler"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/internal/workflow"
	"mailtriage/pkg/db"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/otel"
	"mailtriage/pkg/outbox"
	"mailtriage/pkg/redis"
	"mailtriage/pkg/util"
)

const (
	queueEmailReceived = "triage.email.received.q"
	queueDecision      = "triage.decision.q"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, RabbitMQ consumers and outbox dispatcher",
	Long: `Starts the triage service. Postgres, RabbitMQ and Redis are optional:
without db.host runs and drafts live in memory, without mq.url no consumers
start and alerts are only logged, without redis.addr locking is per process.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	log.Info("Starting triage service...", zap.String("version", version))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := otel.Init(otel.Config{
		ServiceName:    "mailtriage",
		ServiceVersion: version,
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		return err
	}
	defer shutdownOTel()

	ollama := llm.NewOllamaClient(cfg.Ollama, log)
	ready := []httpserver.ReadyCheck{{Name: "model", Check: ollama.Ping}}

	// -------------------------
	// Storage
	// -------------------------
	var (
		runs       service.RunStore
		drafts     handlers.DraftStore
		outboxRepo *outbox.Repository
	)
	if cfg.DB.Enabled() {
		pool, err := db.NewConnection(ctx, cfg.DB, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := repository.Migrate(ctx, pool); err != nil {
			return err
		}
		outboxRepo = outbox.NewRepository(pool)
		runs = repository.NewRunRepository(pool)
		drafts = repository.NewDraftRepository(pool, outboxRepo)
		ready = append(ready, httpserver.ReadyCheck{Name: "db", Check: pool.Ping})
		log.Info("DB ready")
	} else {
		log.Warn("db.host not set, using in-memory storage")
		runs = repository.NewMemoryRunRepository()
		drafts = repository.NewMemoryDraftRepository()
	}

	// -------------------------
	// Messaging
	// -------------------------
	var (
		alerter   handlers.HumanAlerter = collab.NewLogAlerter(log)
		audit     graph.AuditSink       = graph.NewLogSink(log)
		publisher *mq.Publisher
		replayer  httpserver.Replayer
	)
	if cfg.MQ.Enabled() {
		publisher, err = mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer publisher.Close()

		alerter = collab.NewMQAlerter(publisher, log)
		audit = graph.MultiSink{audit, collab.NewMQAuditSink(publisher)}
		ready = append(ready, httpserver.ReadyCheck{Name: "mq", Check: func(context.Context) error {
			if !publisher.IsConnected() {
				return errors.New("publisher disconnected")
			}
			return nil
		}})

		if outboxRepo != nil {
			dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
			go dispatcher.Start(ctx)
			replayer = outbox.NewReplayService(outboxRepo, publisher, log)
		}
	} else if outboxRepo != nil {
		log.Warn("mq.url not set, outbox events will stay pending")
	}

	// -------------------------
	// Locks
	// -------------------------
	var (
		locker       service.Locker
		retryCounter mqhandler.RetryCounter
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = util.NewDeduperWithLogger(rdb, time.Hour, log)
		retryCounter = util.NewRetryCounter(rdb, time.Hour)
		ready = append(ready, httpserver.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	engine, err := workflow.NewEngine(workflow.Deps{
		Client:   ollama,
		Calendar: newCalendar(cfg),
		Alerter:  alerter,
		Store:    drafts,
		Audit:    audit,
		Policy:   cfg.Policy,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	svc := service.NewTriageService(engine, runs, locker, cfg.Worker.Concurrency, log)

	// -------------------------
	// Consumers
	// -------------------------
	if cfg.MQ.Enabled() {
		emailHandler := mqhandler.NewEmailReceivedHandler(svc, retryCounter, cfg.Worker.MaxRetries, log)
		if err := startConsumer(ctx, cfg, queueEmailReceived, mq.RoutingEmailReceived, emailHandler.HandleEmailReceived, log); err != nil {
			return err
		}
		decisionHandler := mqhandler.NewDecisionHandler(svc, log)
		if err := startConsumer(ctx, cfg, queueDecision, mq.RoutingDecision, decisionHandler.HandleDecision, log); err != nil {
			return err
		}
	}

	// -------------------------
	// HTTP
	// -------------------------
	router := httpserver.NewRouter(httpserver.Options{
		Service:   svc,
		Replayer:  replayer,
		JWTSecret: cfg.JWT.Secret,
		Ready:     ready,
		Logger:    log,
	})
	srv := router.Server(cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// 优雅退出处理
	log.Info("Shutting down triage service gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", zap.Error(err))
	}
	log.Info("triage service shutdown complete")
	return nil
}

func startConsumer(ctx context.Context, cfg *config.Config, queue, routingKey string, h mq.MessageHandler, log *zap.Logger) error {
	log.Info("Init consumer", zap.String("queue", queue))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, queue, routingKey, log)
	if err != nil {
		return err
	}
	consumer.SetHandler(h)

	go func() {
		defer consumer.Close()
		if err := consumer.StartConsuming(ctx); err != nil {
			log.Error("Consumer crashed", zap.String("queue", queue), zap.Error(err))
		}
	}()
	return nil
}

func newCalendar(cfg *config.Config) handlers.Calendar {
	if cfg.Calendar.URL != "" {
		return collab.NewHTTPCalendar(cfg.Calendar.URL, cfg.Calendar.Timeout)
	}
	return collab.StaticCalendar{Link: cfg.Calendar.Link}
}
