// 程序入口：读取配置、装配 C1-C7 各组件并启动 HTTP 服务；路由注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/saferoute/risk-engine/internal/aggregator"
	"github.com/saferoute/risk-engine/internal/api"
	"github.com/saferoute/risk-engine/internal/cache"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/crimefeed"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/ingest"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
	"github.com/saferoute/risk-engine/internal/middleware"
	"github.com/saferoute/risk-engine/internal/migrate"
	"github.com/saferoute/risk-engine/internal/routescorer"
	"github.com/saferoute/risk-engine/internal/snapshot"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))

	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg := config.FromEnv()
	l.Debug("config_loaded", "addr", cfg.Addr, "redis_enabled", cfg.RedisEnabled)

	db, err := cfg.OpenPostgres()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	l.Info("db_ping_ok")

	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}
	l.Info("schema_ready")

	categories, err := gridmodel.LoadCategories(cfg)
	if err != nil {
		l.Error("categories_load_error", "err", err)
		os.Exit(1)
	}
	l.Info("categories_loaded", "count", len(categories))

	rdb := cfg.OpenRedis()
	if rdb == nil {
		l.Info("redis_disabled")
	} else {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}
	c7 := cache.New(rdb, cfg)

	events := eventstore.AttachDB(db)
	agg := aggregator.New(db, events, categories, c7.OnVersionBump)
	snap := snapshot.New(db, categories)
	scorer := routescorer.New(db, categories)
	feed := crimefeed.New(cfg.CrimeFeedBaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.UTC
	}
	ingest.StartDaily(ctx, feed, events, agg, cfg, loc, 4)
	l.Info("scheduler_started", "hour", 4, "tz", loc.String())

	deps := &api.Deps{Snapshot: snap, Scorer: scorer, Aggregator: agg, Cache: c7, Config: cfg, Feed: feed, Events: events}
	apiMux := api.BuildRoutes(deps)

	mux := http.NewServeMux()
	mux.Handle("/", apiMux)
	mux.Handle("/metrics", metrics.Handler())

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg)

	s := &http.Server{Addr: cfg.Addr, Handler: handler}
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Error("serve_error", "err", err)
		os.Exit(1)
	}
}
