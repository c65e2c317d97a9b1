// 包 eventstore：CrimeEvent 持久化层，基于 database/sql + lib/pq，无 ORM
// 背景：沿用既有数据访问层的连接池配置与显式 SQL 习惯（internal/store/store.go、internal/utils/db.go），
// 把 IP 归属地查询替换为犯罪事件的幂等写入与按月/按包围盒的游标读取。
package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	_ "github.com/lib/pq"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
)

// Store 持有数据库连接池，提供事件写入与游标读取接口。
type Store struct {
	db *sql.DB
}

// AttachDB 包装一个已经打开的连接池（测试或手工注入场景）。
func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB { return s.db }

const upsertBatchSize = 1000

// maxSkipRatio 是一批事件中可容忍的畸形记录比例；超过这个比例说明上游数据源本身有问题，
// 整批拒绝比悄悄接受 90% 的脏数据更安全。
const maxSkipRatio = 0.10

// shouldSkipEvent 判断一条事件是否畸形：缺少外部 ID，或坐标是 (0,0) 这种典型的
// 地理编码失败占位值。
func shouldSkipEvent(ev gridmodel.CrimeEvent) bool {
	return ev.ExternalID == "" || (ev.Lon == 0 && ev.Lat == 0)
}

// checkSkipRatio 在 skipped/total 超过 maxSkipRatio 时报错；total 为 0 时永不触发。
func checkSkipRatio(skipped, total int) error {
	if total == 0 {
		return nil
	}
	ratio := float64(skipped) / float64(total)
	if ratio > maxSkipRatio {
		return engineerr.Upstream("eventstore.UpsertEvents", fmt.Sprintf("malformed ratio %.1f%% exceeds %.0f%% threshold", ratio*100, maxSkipRatio*100), nil)
	}
	return nil
}

// UpsertEvents 幂等写入一批事件：按 external_id 冲突时用本批数据覆盖（源数据为准），
// 每 upsertBatchSize 行提交一次事务以限制 WAL/锁持有时长（镜像教师版 internal/ingest/ingest.go 每 5000
// 行提交一次的节奏，这里事件负载更宽，缩小批量）。
// 返回已接受与已跳过的行数；malformed 记录（缺 external_id，或坐标为 (0,0)，见 shouldSkipEvent）
// 被跳过并计数。跳过比例超过 maxSkipRatio 时返回 Upstream 错误，最后一个未提交的事务回滚；
// 此前按 upsertBatchSize 已提交的行保留。
func (s *Store) UpsertEvents(ctx context.Context, events []gridmodel.CrimeEvent) (accepted, skipped int, err error) {
	start := time.Now()
	defer func() {
		metrics.IngestBatchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()

	if len(events) == 0 {
		return 0, 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, engineerr.Upstream("eventstore.UpsertEvents", "begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO crime_events(external_id, month, category_id, lon, lat, force_id, output_area, location_description)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (external_id) DO UPDATE SET
			month = EXCLUDED.month,
			category_id = EXCLUDED.category_id,
			lon = EXCLUDED.lon,
			lat = EXCLUDED.lat,
			force_id = EXCLUDED.force_id,
			output_area = EXCLUDED.output_area,
			location_description = EXCLUDED.location_description`)
	if err != nil {
		return 0, 0, engineerr.Upstream("eventstore.UpsertEvents", "prepare", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if shouldSkipEvent(ev) {
			skipped++
			metrics.IngestEventsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		if _, err := stmt.ExecContext(ctx, ev.ExternalID, ev.Month, ev.CategoryID, ev.Lon, ev.Lat, ev.ForceID, ev.OutputArea, ev.LocationDescription); err != nil {
			return accepted, skipped, engineerr.Upstream("eventstore.UpsertEvents", "exec", err)
		}
		accepted++
		metrics.IngestEventsTotal.WithLabelValues("accepted").Inc()

		if accepted%upsertBatchSize == 0 {
			if err := tx.Commit(); err != nil {
				return accepted, skipped, engineerr.Upstream("eventstore.UpsertEvents", "commit batch", err)
			}
			logger.L().Debug("upsert_events_progress", "accepted", accepted, "skipped", skipped)
			tx, err = s.db.BeginTx(ctx, nil)
			if err != nil {
				return accepted, skipped, engineerr.Upstream("eventstore.UpsertEvents", "begin next tx", err)
			}
			stmt, err = tx.PrepareContext(ctx, `
				INSERT INTO crime_events(external_id, month, category_id, lon, lat, force_id, output_area, location_description)
				VALUES($1,$2,$3,$4,$5,$6,$7,$8)
				ON CONFLICT (external_id) DO UPDATE SET
					month = EXCLUDED.month,
					category_id = EXCLUDED.category_id,
					lon = EXCLUDED.lon,
					lat = EXCLUDED.lat,
					force_id = EXCLUDED.force_id,
					output_area = EXCLUDED.output_area,
					location_description = EXCLUDED.location_description`)
			if err != nil {
				return accepted, skipped, engineerr.Upstream("eventstore.UpsertEvents", "re-prepare", err)
			}
		}
	}

	if err := checkSkipRatio(skipped, len(events)); err != nil {
		return accepted, skipped, err
	}

	if err := tx.Commit(); err != nil {
		return accepted, skipped, engineerr.Upstream("eventstore.UpsertEvents", "final commit", err)
	}
	logger.L().Info("upsert_events_done", "accepted", accepted, "skipped", skipped)
	return accepted, skipped, nil
}

// EventsInMonth streams every event whose month equals the first-of-month date.
func (s *Store) EventsInMonth(ctx context.Context, month time.Time) iter.Seq2[gridmodel.CrimeEvent, error] {
	return func(yield func(gridmodel.CrimeEvent, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT external_id, month, category_id, lon, lat, force_id, output_area, location_description
			FROM crime_events WHERE month = $1`, month)
		if err != nil {
			yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInMonth", "query", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var ev gridmodel.CrimeEvent
			if err := rows.Scan(&ev.ExternalID, &ev.Month, &ev.CategoryID, &ev.Lon, &ev.Lat, &ev.ForceID, &ev.OutputArea, &ev.LocationDescription); err != nil {
				if !yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInMonth", "scan", err)) {
					return
				}
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInMonth", "rows", err))
		}
	}
}

// EventsInBBoxBetween streams events within [minLon,minLat,maxLon,maxLat] whose month
// falls in [fromMonth, toMonth] inclusive, both first-of-month dates.
func (s *Store) EventsInBBoxBetween(ctx context.Context, bbox [4]float64, fromMonth, toMonth time.Time) iter.Seq2[gridmodel.CrimeEvent, error] {
	return func(yield func(gridmodel.CrimeEvent, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT external_id, month, category_id, lon, lat, force_id, output_area, location_description
			FROM crime_events
			WHERE month BETWEEN $1 AND $2
			  AND lon BETWEEN $3 AND $5
			  AND lat BETWEEN $4 AND $6`,
			fromMonth, toMonth, bbox[0], bbox[1], bbox[2], bbox[3])
		if err != nil {
			yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInBBoxBetween", "query", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var ev gridmodel.CrimeEvent
			if err := rows.Scan(&ev.ExternalID, &ev.Month, &ev.CategoryID, &ev.Lon, &ev.Lat, &ev.ForceID, &ev.OutputArea, &ev.LocationDescription); err != nil {
				if !yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInBBoxBetween", "scan", err)) {
					return
				}
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(gridmodel.CrimeEvent{}, engineerr.Upstream("eventstore.EventsInBBoxBetween", "rows", err))
		}
	}
}
