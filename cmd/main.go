package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"modgov/config"
	"modgov/content"
	"modgov/db"
	"modgov/governance"
	"modgov/handlers"
	"modgov/logger"
	"modgov/oracle"
	"modgov/repository"
	"modgov/reputation"
	"modgov/routers"
)

// balanceSource is what both oracle drivers provide.
type balanceSource interface {
	governance.BalanceOracle
	oracle.AccountAges
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the yaml config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting moderation governance server...")

	// Connect to LevelDB
	var ldb *db.LevelDB
	if cfg.LevelDB.Memory {
		logger.Logger.Warn("Using in-memory leveldb, state is lost on exit")
		ldb, err = db.NewMemLevelDB()
	} else {
		ldb, err = db.NewLevelDB(cfg.LevelDB.Path)
	}
	if err != nil {
		logger.Logger.Fatal("Failed to open leveldb", zap.Error(err))
	}
	defer ldb.Close()

	balances, closeOracle := openOracle(cfg.Oracle)
	defer closeOracle()

	repo := repository.NewGovernanceRepository(ldb)
	contentStore := content.NewStore(ldb)
	ledger := reputation.NewLedger(ldb)

	eligibility := &oracle.Eligibility{
		Accounts:      balances,
		Balances:      balances,
		Reputation:    ledger,
		MinAccountAge: cfg.Oracle.MinAccountAge,
		MinStake:      cfg.Oracle.MinStake,
		MinReputation: cfg.Oracle.MinReputation,
	}

	params := cfg.Params()
	engine := governance.New(governance.Deps{
		Repo:        repo,
		Oracle:      balances,
		Eligibility: eligibility,
		Content:     contentStore,
		Rewards:     ledger,
		Clock:       governance.SystemClock,
	}, params)

	// Background workers: settlement sweeper and reward relay
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		engine.NewSweeper(cfg.Workers.Concurrency).Run(ctx, cfg.Workers.SweepInterval)
	}()
	go func() {
		defer wg.Done()
		engine.Relay.Run(ctx, cfg.Workers.RelayInterval)
	}()

	// Initialize HTTP handlers
	h := handlers.NewHandler(engine, contentStore, ledger, governance.SystemClock)

	// Setup router
	r := mux.NewRouter()
	routers.RegisterRoutes(r, h)

	// HTTP Server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port",
		zap.Int("port", cfg.Server.Port),
		zap.String("oracle", cfg.Oracle.Driver),
		zap.Int("report_threshold", params.ReportThreshold),
		zap.Duration("voting_window", params.VotingWindow))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	cancel()
	wg.Wait()
}

func openOracle(cfg config.OracleConfig) (balanceSource, func()) {
	if cfg.Driver != "redis" {
		logger.Logger.Warn("Using in-memory balance oracle, every account has zero weight")
		return oracle.NewMemory(), func() {}
	}

	rdb, err := oracle.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Logger.Fatal("Invalid redis url", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Logger.Fatal("Failed to reach redis", zap.Error(err))
	}
	logger.Logger.Info("Connected to redis balance oracle")
	return oracle.NewRedis(rdb, cfg.LockTTL), func() { rdb.Close() }
}
