// 包 ingest：把 crimefeed 拉取到的事件写入事件存储，并触发聚合器折算当月网格
// 背景：泛化教师版 internal/ingest/ingest.go 的"HTTP 拉取 + 批量写库 + 错误直接透传，
// 不做隐式重试"骨架——网络层的封顶退避已经下沉到 internal/crimefeed，这里只负责把流式
// 事件攒批写库，随后调用聚合器重新聚合受影响的月份。
package ingest

import (
	"context"
	"time"

	"github.com/saferoute/risk-engine/internal/aggregator"
	"github.com/saferoute/risk-engine/internal/crimefeed"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
)

// TilesFor 把一个包围盒切成 crimefeed 请求可接受的瓦片；上游按月/多边形查询，
// 覆盖区域较小时一个瓦片就够，超出阈值时按经纬各二分。
func TilesFor(bbox [4]float64) []crimefeed.BBoxTile {
	minLat, minLon, maxLat, maxLon := bbox[0], bbox[1], bbox[2], bbox[3]
	const maxSpan = 0.15 // degrees; data.police.uk 对多边形顶点数与面积均有隐性限制
	if maxLat-minLat <= maxSpan && maxLon-minLon <= maxSpan {
		return []crimefeed.BBoxTile{{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}}
	}
	midLat := (minLat + maxLat) / 2
	midLon := (minLon + maxLon) / 2
	return []crimefeed.BBoxTile{
		{MinLat: minLat, MinLon: minLon, MaxLat: midLat, MaxLon: midLon},
		{MinLat: minLat, MinLon: midLon, MaxLat: midLat, MaxLon: maxLon},
		{MinLat: midLat, MinLon: minLon, MaxLat: maxLat, MaxLon: midLon},
		{MinLat: midLat, MinLon: midLon, MaxLat: maxLat, MaxLon: maxLon},
	}
}

// FetchAndImportMonth 拉取指定月份覆盖区域内的事件，批量写入事件存储，然后重新聚合该月。
// 单个瓦片的网络错误直接返回，不做外层重试（交由调度层的下一次周期处理）。
func FetchAndImportMonth(ctx context.Context, feed *crimefeed.Client, events *eventstore.Store, agg *aggregator.Aggregator, bbox [4]float64, month time.Time) error {
	l := logger.L()
	l.Info("ingest_month_start", "month", month.Format("2006-01"))
	tiles := TilesFor(bbox)

	var batch []gridmodel.CrimeEvent
	const batchSize = 1000
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		accepted, skipped, err := events.UpsertEvents(ctx, batch)
		if err != nil {
			return err
		}
		l.Info("ingest_batch_committed", "accepted", accepted, "skipped", skipped)
		batch = batch[:0]
		return nil
	}

	start := time.Now()
	for ev, err := range feed.Fetch(ctx, month.Year(), int(month.Month()), tiles) {
		if err != nil {
			return err
		}
		batch = append(batch, ev)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	metrics.IngestBatchDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	if err := agg.IngestMonth(ctx, month); err != nil {
		return engineerr.Upstream("ingest.FetchAndImportMonth", "re-aggregate after ingest", err)
	}
	l.Info("ingest_month_done", "month", month.Format("2006-01"))
	return nil
}

// CurrentMonth 返回处于 UTC 的当月第一天，聚合桶以此为粒度（数据模型中 SafetyCell.month 的粒度）。
func CurrentMonth(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
