// 包 ingest：后台周期调度，定期拉取最新一个月的犯罪事件并重新聚合
package ingest

import (
	"context"
	"time"

	"github.com/saferoute/risk-engine/internal/aggregator"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/crimefeed"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/logger"
)

// nextDailyAt 计算下一次指定小时的时间点（若当天已过该小时则推到次日）。
// 背景：泛化自教师版 nextMondayAt 的"按时区与整点前推到未来时间"思路；data.police.uk
// 按月发布数据，没有固定的周更节奏，采用每日检查足够及时且简单。
func nextDailyAt(loc *time.Location, hour int) time.Time {
	now := time.Now().In(loc)
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, loc)
	if t.After(now) {
		return t
	}
	return t.AddDate(0, 0, 1)
}

// StartDaily 在给定时区每天 hour 点启动一次 ingest-latest；错误记录日志，调度继续进行。
// 背景：沿用教师版 StartWeeklyShanghai 的"计算下次触发点 -> sleep -> 执行 -> 重新计算"循环；
// 这里触发的是对当月的重新拉取与聚合，而不是整库重建的离线导入。
func StartDaily(ctx context.Context, feed *crimefeed.Client, events *eventstore.Store, agg *aggregator.Aggregator, cfg *config.Config, loc *time.Location, hour int) {
	l := logger.L()
	next := nextDailyAt(loc, hour)
	go func() {
		for {
			select {
			case <-time.After(time.Until(next)):
			case <-ctx.Done():
				return
			}
			l.Info("scheduled_ingest_start", "next", next)
			month := CurrentMonth(time.Now())
			if err := FetchAndImportMonth(ctx, feed, events, agg, cfg.SoutheamptonBBox, month); err != nil {
				l.Error("scheduled_ingest_error", "err", err)
			} else {
				l.Info("scheduled_ingest_done")
			}
			next = next.AddDate(0, 0, 1)
		}
	}()
}
