package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/open9am/traderengine/internal/config"
	"github.com/open9am/traderengine/internal/connector"
	"github.com/open9am/traderengine/internal/engine"
	"github.com/open9am/traderengine/internal/events"
	"github.com/open9am/traderengine/internal/ledger"
	"github.com/open9am/traderengine/internal/ledger/memstore"
	"github.com/open9am/traderengine/internal/ledger/postgres"
	"github.com/open9am/traderengine/internal/metrics"
	"github.com/open9am/traderengine/pkg/logger"
	"github.com/open9am/traderengine/pkg/snowflake"
)

type snowflakeIDGen struct{}

func (snowflakeIDGen) NextID() int64 {
	return snowflake.MustNextID()
}

func main() {
	cfg := config.Load()
	log.Printf("Starting %s...", cfg.ServiceName)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if err := snowflake.Init(cfg.WorkerID); err != nil {
		log.Fatalf("Failed to init snowflake: %v", err)
	}

	svcLog := logger.New(cfg.ServiceName, os.Stdout)

	// 账本后端
	var store ledger.Store
	var db *sql.DB
	if cfg.StoreBackend == "memory" {
		mem := memstore.New()
		// 仿真盘没有外部交易日来源，用本地日期
		if err := mem.SetTradingDay(context.Background(), time.Now().Format("20060102")); err != nil {
			log.Fatalf("Failed to set trading day: %v", err)
		}
		store = mem
		log.Printf("Using in-memory ledger (paper mode)")
	} else {
		var err error
		db, err = sql.Open("postgres", cfg.DSN())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pingCancel()
		if err := db.PingContext(pingCtx); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		store = postgres.New(db)
		log.Printf("Connected to PostgreSQL")
	}

	// Redis，事件发布用
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})
	defer redisClient.Close()

	redisPingCtx, redisPingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisPingCancel()
	if err := redisClient.Ping(redisPingCtx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Printf("Connected to Redis")

	metricsCollector := metrics.NewDefault()
	eng := engine.New(store, snowflakeIDGen{}, svcLog, metricsCollector)
	eng.RegisterHandler(events.NewPublisher(redisClient, cfg.EventChannel, svcLog))

	// 仿真通道
	simCfg := engine.RuntimeConfig{
		StartProps: map[string]string{
			"latency_ms": strconv.Itoa(cfg.SimLatencyMs),
		},
	}
	if err := eng.Register(cfg.SimTraderID, connector.NewSim(), simCfg); err != nil {
		log.Fatalf("Failed to register sim trader: %v", err)
	}
	if err := eng.Enable(cfg.SimTraderID); err != nil {
		log.Fatalf("Failed to enable sim trader: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start traders: %v", err)
	}
	log.Printf("Engine working")

	// 日终结算
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SettleSpec, func() {
		settleCtx, settleCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer settleCancel()
		if err := eng.Settle(settleCtx); err != nil {
			svcLog.WithError(err).Error("daily settlement failed")
		}
	}); err != nil {
		log.Fatalf("Invalid settle spec %q: %v", cfg.SettleSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsCollector.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				status, code = "db unreachable", http.StatusServiceUnavailable
			}
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			status, code = "redis unreachable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status": status,
			"engine": eng.Status().String(),
		})
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on :%d", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	if err := eng.Stop(context.Background()); err != nil {
		svcLog.WithError(err).Error("stop traders")
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)
	log.Println("Shutdown complete")
}
