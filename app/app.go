package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"forecast-backtest/api"
	"forecast-backtest/auth"
	"forecast-backtest/backtest"
	"forecast-backtest/cache"
	"forecast-backtest/config"
	"forecast-backtest/database"
	"forecast-backtest/database/actuals"
	"forecast-backtest/database/jobs"
	"forecast-backtest/database/snapshots"
	"forecast-backtest/database/webhooks"
	"forecast-backtest/notifications"
	"forecast-backtest/realtime"
	"forecast-backtest/websocket"
)

// App wires every component together and owns their lifecycles.
type App struct {
	config *config.Config

	db     *database.Database
	readDB *database.ReadDB
	redis  *cache.RedisClient

	broker     *realtime.Broker
	events     *backtest.EventPublisher
	runner     *backtest.BacktestRunner
	backfiller *backtest.ActualsBackfiller
	server     *api.Server

	bridgeCancel context.CancelFunc
}

// New creates the application
func New(cfg *config.Config) *App {
	return &App{config: cfg}
}

// Start connects the stores, launches the background workers and serves the
// API. It blocks until a shutdown signal arrives.
func (a *App) Start() error {
	log.Println("🚀 Starting forecast backtest service...")

	dbPort, err := strconv.Atoi(a.config.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid database port %q: %w", a.config.DatabasePort, err)
	}

	db, err := database.Connect(
		a.config.DatabaseHost, dbPort, a.config.DatabaseName,
		a.config.DatabaseUser, a.config.DatabasePassword,
	)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	if err := db.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Println("✅ Database connected and schema ready")

	readDB, err := database.NewReadConnection(database.ReadConfig{
		Host:     a.config.DatabaseHost,
		Port:     a.config.DatabasePort,
		User:     a.config.DatabaseUser,
		Password: a.config.DatabasePassword,
		DBName:   a.config.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("failed to open read connection: %w", err)
	}
	a.readDB = readDB

	// Redis is optional: without it the cache is cold and events stay local
	a.redis = cache.NewRedisClient(a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword)
	if a.redis == nil {
		log.Println("⚠️ Redis unavailable, running without cache")
	}

	snapshotRepo := snapshots.NewRepository(db.DB())
	actualsRepo := actuals.NewRepository(db.DB())
	jobsRepo := jobs.NewRepository(db.DB())
	hooksRepo := webhooks.NewRepository(db.DB())

	// Jobs left running by a previous process will never finish
	if n, err := jobsRepo.MarkInterrupted(); err != nil {
		log.Printf("⚠️ Failed to mark interrupted jobs: %v", err)
	} else if n > 0 {
		log.Printf("🔄 Marked %d interrupted jobs as failed", n)
	}

	// Realtime fan-out: SSE broker, WebSocket hub, redis bridge
	a.broker = realtime.NewBroker()
	go a.broker.Run()
	progressHub := websocket.NewProgressHub(a.broker)

	a.events = backtest.NewEventPublisher(a.broker, a.redis)
	if a.redis != nil {
		bridgeCtx, cancel := context.WithCancel(context.Background())
		a.bridgeCancel = cancel
		go a.events.RunBridge(bridgeCtx)
	}

	webhookMgr := notifications.NewWebhookManager(hooksRepo, a.redis)
	weightSource := backtest.NewSnapshotWeightSource(snapshotRepo)

	onChange := func() {
		if a.redis == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.redis.DeleteByPrefix(ctx, "accuracy:"); err != nil {
			log.Printf("⚠️ Failed to invalidate accuracy cache: %v", err)
		}
	}

	a.runner = backtest.NewBacktestRunner(
		snapshotRepo, jobsRepo, actualsRepo, weightSource, a.events, webhookMgr,
		a.config.Backtest.CovidStart, a.config.Backtest.CovidEnd, onChange,
	)

	backfillInterval := time.Duration(a.config.Backtest.BackfillIntervalMinutes) * time.Minute
	a.backfiller = backtest.NewActualsBackfiller(snapshotRepo, a.events, backfillInterval, onChange)
	go a.backfiller.Start()

	validator := auth.NewValidator(a.config.APITokens)
	a.server = api.NewServer(api.ServerDeps{
		Snapshots:  snapshotRepo,
		Jobs:       jobsRepo,
		Webhooks:   hooksRepo,
		StatusDB:   readDB,
		Actuals:    actualsRepo,
		Runner:     a.runner,
		Backfiller: a.backfiller,
		Broker:     a.broker,
		ProgressWS: progressHub,
		Redis:      a.redis,
		WebhookMgr: webhookMgr,
		Validator:  validator,
		CacheTTL:   time.Duration(a.config.Backtest.CacheTTLSeconds) * time.Second,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start(a.config.APIPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("API server stopped: %w", err)
	case sig := <-sigCh:
		log.Printf("🔄 Received %s, shutting down...", sig)
	}

	a.shutdown()
	log.Println("✅ Shutdown complete")
	return nil
}

// shutdown drains the server and workers, then closes the stores.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API server shutdown: %v", err)
	}
	if err := a.runner.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Backtest runner shutdown: %v", err)
	}
	a.backfiller.Stop()
	if a.bridgeCancel != nil {
		a.bridgeCancel()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Printf("⚠️ Redis close: %v", err)
		}
	}
	if err := a.readDB.Close(); err != nil {
		log.Printf("⚠️ Read connection close: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("⚠️ Database close: %v", err)
	}
}
