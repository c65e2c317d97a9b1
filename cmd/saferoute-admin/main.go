// 命令行工具：一次性触发 ingest-month / rebuild-grid / validate-grid-health，
// 不经过 HTTP 层，供运维脚本与部署流水线直接调用。
// 背景：泛化教师版 cmd/ip-api-ingest 的"读取配置 -> 打开数据库 -> 执行一次性批处理 ->
// 打印结果并退出"骨架；教师版按行解析 ip2region 字典文本，这里换成调用聚合器/事件存储。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/saferoute/risk-engine/internal/aggregator"
	"github.com/saferoute/risk-engine/internal/cache"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/crimefeed"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/ingest"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/migrate"
)

func main() {
	cmd := flag.String("cmd", "", "ingest-month | rebuild-grid | validate-grid-health")
	year := flag.Int("year", 0, "calendar year (ingest-month, validate-grid-health)")
	month := flag.Int("month", 0, "calendar month 1-12 (ingest-month, validate-grid-health)")
	months := flag.Int("months", 24, "lookback window in months (rebuild-grid)")
	flag.Parse()

	if *cmd == "" {
		fmt.Fprintln(os.Stderr, "usage: saferoute-admin -cmd=ingest-month|rebuild-grid|validate-grid-health [-year=Y -month=M] [-months=N]")
		os.Exit(2)
	}

	logger.Setup()
	cfg := config.FromEnv()
	db, err := cfg.OpenPostgres()
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		log.Fatal(err)
	}

	categories, err := gridmodel.LoadCategories(cfg)
	if err != nil {
		log.Fatal(err)
	}
	events := eventstore.AttachDB(db)
	c7 := cache.New(cfg.OpenRedis(), cfg)
	agg := aggregator.New(db, events, categories, c7.OnVersionBump)

	ctx := context.Background()

	switch *cmd {
	case "ingest-month":
		m := resolveMonth(*year, *month)
		feed := crimefeed.New(cfg.CrimeFeedBaseURL)
		if err := ingest.FetchAndImportMonth(ctx, feed, events, agg, cfg.SoutheamptonBBox, m); err != nil {
			log.Fatal(err)
		}
		fmt.Println("ingested", m.Format("2006-01"))

	case "rebuild-grid":
		if err := agg.Rebuild(ctx, *months); err != nil {
			log.Fatal(err)
		}
		fmt.Println("rebuilt grid, lookback_months =", *months)

	case "validate-grid-health":
		m := resolveMonth(*year, *month)
		violations, err := agg.ValidateGridHealth(ctx, m)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("validated %s: %d violation(s)\n", m.Format("2006-01"), len(violations))
		for _, v := range violations {
			fmt.Println(" -", v)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd:", *cmd)
		os.Exit(2)
	}
}

func resolveMonth(year, month int) time.Time {
	if year == 0 || month == 0 {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}
