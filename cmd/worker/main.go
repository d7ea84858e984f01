package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/common/llm"
	"basicsos.app/automation/common/logger"
	"basicsos.app/automation/common/otel"
	"basicsos.app/automation/core/config"
	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/action"
	"basicsos.app/automation/internal/automation"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/queue"
	"basicsos.app/automation/internal/store"
	"basicsos.app/automation/internal/subscribers"
	"basicsos.app/automation/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Service)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "automation worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.ConsumerGroup,
		"consumer_name", cfg.Queue.ConsumerName,
		"concurrency", cfg.Worker.Concurrency)

	// Server and worker must not share a snowflake node
	if err := id.Init(id.NodeWorker); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected")

	opts := queue.Options{
		Attempts:        cfg.Queue.Attempts,
		Backoff:         cfg.Queue.Backoff,
		RetainCompleted: cfg.Queue.RetainCompleted,
		RetainFailed:    cfg.Queue.RetainFailed,
	}

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Queue:     queue.QueueAutomation,
		Group:     cfg.Queue.ConsumerGroup,
		Consumer:  cfg.Queue.ConsumerName,
		BatchSize: int64(cfg.Worker.Concurrency),
		Block:     cfg.Worker.ReadBlock,
		Options:   opts,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Conn())

	var completer llm.Completer
	if cfg.OpenAI.Enabled() {
		completer, err = llm.New(llm.Config{
			APIKey:    cfg.OpenAI.APIKey,
			BaseURL:   cfg.OpenAI.BaseURL,
			Model:     cfg.OpenAI.Model,
			MaxTokens: cfg.OpenAI.MaxTokens,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to create llm client", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "llm client ready", "model", completer.Model())
	} else {
		slog.WarnContext(ctx, "OPENAI_API_KEY not set, run_ai_prompt actions will fail")
	}

	guard := action.NewURLGuard(nil)
	registry := action.NewRegistry(action.Deps{
		Tasks:        stores.Tasks(),
		Users:        stores.Users(),
		CRM:          stores.CRM(),
		Completer:    completer,
		Guard:        guard,
		HTTPClient:   action.NewWebhookClient(guard, cfg.Webhook.Timeout),
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
	})

	// Outcome events re-enter matching, so automations can trigger on
	// automation.completed and automation.failed.
	producer := queue.NewRedisProducer(redisClient, opts, slog.Default())
	bus := events.NewBus()
	automation.NewMatcher(stores.Automations(), producer).Register(bus)
	subscribers.NewAuditLogger(stores.AuditLogs()).Register(bus)
	subscribers.NewNotificationDispatcher(stores.Notifications()).Register(bus)

	var nc *nats.Conn
	if cfg.NATS.Enabled() {
		nc, err = subscribers.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to nats", "error", err)
			os.Exit(1)
		}
		subscribers.NewNATSForwarder(nc, cfg.NATS.SubjectPrefix).Register(bus)
	}

	executor := automation.NewExecutor(stores.Automations(), stores.Runs(), registry, bus)

	w := worker.New(consumer, worker.Config{Concurrency: cfg.Worker.Concurrency})
	w.Handle(queue.JobExecuteAutomation, executor.HandleJob)

	reclaimer := worker.NewReclaimer(consumer, worker.ReclaimerConfig{
		MinIdle:   cfg.Worker.ReclaimMinIdle,
		Interval:  cfg.Worker.ReclaimInterval,
		BatchSize: 10,
	}, w.Reclaim)

	promoter := worker.NewPromoter(consumer, cfg.Worker.PromoteInterval)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(runCtx)
	}()
	go reclaimer.Run(runCtx)
	go promoter.Run(runCtx)

	slog.InfoContext(ctx, "worker initialized and running", "queue", consumer.Queue())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		slog.ErrorContext(ctx, "worker stopped unexpectedly", "error", err)
	}

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Worker.ShutdownTimeout)
	defer cancel()

	// Stop reclaimer and promoter first
	reclaimer.Stop()
	promoter.Stop()

	// Stop worker; Run returns once in-flight chains finish
	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case <-stopped:
	}
	stop()

	bus.Wait()

	if nc != nil {
		if err := nc.Drain(); err != nil {
			slog.ErrorContext(ctx, "nats drain error", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 █████╗ ██╗   ██╗████████╗ ██████╗ ███╗   ███╗ █████╗ ████████╗██╗ ██████╗ ███╗   ██╗
██╔══██╗██║   ██║╚══██╔══╝██╔═══██╗████╗ ████║██╔══██╗╚══██╔══╝██║██╔═══██╗████╗  ██║
███████║██║   ██║   ██║   ██║   ██║██╔████╔██║███████║   ██║   ██║██║   ██║██╔██╗ ██║
██╔══██║██║   ██║   ██║   ██║   ██║██║╚██╔╝██║██╔══██║   ██║   ██║██║   ██║██║╚██╗██║
██║  ██║╚██████╔╝   ██║   ╚██████╔╝██║ ╚═╝ ██║██║  ██║   ██║   ██║╚██████╔╝██║ ╚████║
╚═╝  ╚═╝ ╚═════╝    ╚═╝    ╚═════╝ ╚═╝     ╚═╝╚═╝  ╚═╝   ╚═╝   ╚═╝ ╚═════╝ ╚═╝  ╚═══╝
                                                                        worker
`
