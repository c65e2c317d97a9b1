// 包 aggregator：把 CrimeEvent 折叠为 (h3_index, month) 桶并落地为 SafetyCell
// 背景：Rebuild/IngestMonth 是整个引擎唯一允许写 safety_cells 的入口；折叠逻辑（count/weighted/stats）
// 必须逐事件精确累加，否则违反 I1/I2 守恒不变式。
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"hash/fnv"
	"iter"
	"time"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/h3grid"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
)

// VersionBumpFunc 在每次成功的 Rebuild/IngestMonth 之后被调用一次，供缓存一致性层
// （internal/cache）把新版本号镜像进 Redis，从而无需每次读请求都查询 Postgres。
type VersionBumpFunc func(ctx context.Context, version int64)

// Aggregator 持有事件存储、分类表与数据库连接，产出/更新 SafetyCell。
type Aggregator struct {
	db         *sql.DB
	events     *eventstore.Store
	categories map[string]gridmodel.CrimeCategory
	onVersion  VersionBumpFunc
	now        func() time.Time
}

// New 组装一个 Aggregator；onVersionBump 可为 nil（本地测试/一次性 CLI 场景）。
func New(db *sql.DB, events *eventstore.Store, categories map[string]gridmodel.CrimeCategory, onVersionBump VersionBumpFunc) *Aggregator {
	return &Aggregator{db: db, events: events, categories: categories, onVersion: onVersionBump, now: time.Now}
}

type bucket struct {
	h3Index string
	count   int
	weighted float64
	stats   map[string]int
}

// foldEvents folds a stream of events into (h3_index) buckets: per-cell count, harm-weighted
// sum, and per-category stats. Pure apart from reading the event stream — no DB access —
// so the same input always folds to the same buckets (I1/I2 conservation), which is what makes
// Rebuild/IngestMonth idempotent when re-run over an unchanged event set.
func foldEvents(events iter.Seq2[gridmodel.CrimeEvent, error], categories map[string]gridmodel.CrimeCategory) (map[string]*bucket, error) {
	buckets := map[string]*bucket{}
	for ev, err := range events {
		if err != nil {
			return nil, engineerr.Upstream("aggregator.foldEvents", "stream events", err)
		}
		h3Index, err := h3grid.CellOf(ev.Lat, ev.Lon)
		if err != nil {
			logger.L().Warn("aggregate_skip_event", "external_id", ev.ExternalID, "err", err)
			continue
		}
		catID := gridmodel.NormalizedCategory(ev.CategoryID, categories)
		cat := categories[catID]

		b, ok := buckets[h3Index]
		if !ok {
			b = &bucket{h3Index: h3Index, stats: map[string]int{}}
			buckets[h3Index] = b
		}
		b.count++
		b.stats[catID]++
		b.weighted += cat.HarmWeight
	}
	return buckets, nil
}

// monthKeyLockID 把月份字符串哈希为一个 int64 advisory-lock 键，供 pg_try_advisory_xact_lock 使用。
func monthKeyLockID(monthKey string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(monthKey))
	return int64(h.Sum64())
}

// Rebuild 确定性地重建最近 months 个月的网格：current-month 及其之前 months-1 个月。
// 取进程级聚合表锁（process-wide），逐月折叠、逐月原子提交，任一月被并发占用
// 则返回 Busy 类错误（engineerr.KindBusy），不阻塞等待。
func (a *Aggregator) Rebuild(ctx context.Context, months int) error {
	if months <= 0 {
		return engineerr.Invalid("aggregator.Rebuild", "months must be positive")
	}
	start := time.Now()
	now := a.now()
	cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	conn, err := a.db.Conn(ctx)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return engineerr.Upstream("aggregator.Rebuild", "acquire conn", err)
	}
	defer conn.Close()

	const processLockID = int64(0x5afe5afe) // fixed process-wide aggregation-table lock
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, processLockID); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return engineerr.Upstream("aggregator.Rebuild", "process lock", err)
	}
	defer conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, processLockID)

	for i := 0; i < months; i++ {
		month := cur.AddDate(0, -i, 0)
		if err := a.aggregateMonth(ctx, month); err != nil {
			metrics.AggregationRunsTotal.WithLabelValues(outcomeOf(err)).Inc()
			return err
		}
	}

	version, err := a.bumpVersion(ctx)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return err
	}
	if a.onVersion != nil {
		a.onVersion(ctx, version)
	}
	metrics.AggregationRunsTotal.WithLabelValues("ok").Inc()
	metrics.AggregationDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	logger.L().Info("rebuild_done", "months", months, "version", version)
	return nil
}

// IngestMonth 仅重新聚合指定的这一个月；拉取与写入事件由调用方（ingest.FetchAndImportMonth）完成。
func (a *Aggregator) IngestMonth(ctx context.Context, month time.Time) error {
	start := time.Now()
	monthFirst := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := a.aggregateMonth(ctx, monthFirst); err != nil {
		metrics.AggregationRunsTotal.WithLabelValues(outcomeOf(err)).Inc()
		return err
	}
	version, err := a.bumpVersion(ctx)
	if err != nil {
		metrics.AggregationRunsTotal.WithLabelValues("error").Inc()
		return err
	}
	if a.onVersion != nil {
		a.onVersion(ctx, version)
	}
	metrics.AggregationRunsTotal.WithLabelValues("ok").Inc()
	metrics.AggregationDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	logger.L().Info("ingest_month_done", "month", monthFirst.Format("2006-01"), "version", version)
	return nil
}

// aggregateMonth folds every event in month into (h3, month) buckets and upserts them inside
// a single transaction guarded by a month-scoped advisory lock, so readers observe the whole
// month's rebuild or none of it.
func (a *Aggregator) aggregateMonth(ctx context.Context, month time.Time) error {
	monthKey := month.Format("200601")
	lockID := monthKeyLockID(monthKey)

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return engineerr.Upstream("aggregator.aggregateMonth", "begin tx", err)
	}
	defer tx.Rollback()

	var locked bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, lockID).Scan(&locked); err != nil {
		return engineerr.Upstream("aggregator.aggregateMonth", "try lock", err)
	}
	if !locked {
		return engineerr.Busy("aggregator.aggregateMonth", "month "+monthKey+" is already being aggregated")
	}

	buckets, err := foldEvents(a.events.EventsInMonth(ctx, month), a.categories)
	if err != nil {
		return err
	}

	for _, b := range buckets {
		geom, err := h3grid.BoundaryOf(b.h3Index)
		if err != nil {
			return engineerr.Inconsistent("aggregator.aggregateMonth", "cell "+b.h3Index+": "+err.Error())
		}
		statsJSON, err := json.Marshal(b.stats)
		if err != nil {
			return engineerr.Upstream("aggregator.aggregateMonth", "marshal stats", err)
		}
		geomWKT := polygonToWKT(geom)
		cellID := gridmodel.CellID(b.h3Index, month)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO safety_cells(cell_id, h3_index, month, crime_count_total, crime_count_weighted, stats, geom, updated_at)
			VALUES($1,$2,$3,$4,$5,$6,ST_GeogFromText($7),now())
			ON CONFLICT (cell_id) DO UPDATE SET
				crime_count_total = EXCLUDED.crime_count_total,
				crime_count_weighted = EXCLUDED.crime_count_weighted,
				stats = EXCLUDED.stats,
				geom = EXCLUDED.geom,
				updated_at = now()`,
			cellID, b.h3Index, month, b.count, b.weighted, statsJSON, geomWKT); err != nil {
			return engineerr.Upstream("aggregator.aggregateMonth", "upsert cell "+cellID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return engineerr.Upstream("aggregator.aggregateMonth", "commit", err)
	}
	logger.L().Debug("aggregate_month_done", "month", monthKey, "cells", len(buckets))
	return nil
}

func (a *Aggregator) bumpVersion(ctx context.Context) (int64, error) {
	var version int64
	err := a.db.QueryRowContext(ctx, `
		UPDATE grid_versions SET version = version + 1 WHERE id = 1 RETURNING version`).Scan(&version)
	if err != nil {
		return 0, engineerr.Upstream("aggregator.bumpVersion", "update", err)
	}
	metrics.GridVersion.Set(float64(version))
	return version, nil
}

func outcomeOf(err error) string {
	if engineerr.Is(err, engineerr.KindBusy) {
		return "busy"
	}
	return "error"
}

func polygonToWKT(p gridmodel.Polygon) string {
	s := "SRID=4326;POLYGON(("
	for i, pt := range p.Rings[0] {
		if i > 0 {
			s += ", "
		}
		s += formatCoord(pt.Lon) + " " + formatCoord(pt.Lat)
	}
	s += "))"
	return s
}

func formatCoord(v float64) string {
	return jsonNumber(v)
}

func jsonNumber(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
