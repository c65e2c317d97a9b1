// 包 crimefeed：外部犯罪事件源的 HTTP 客户端
// 背景：沿用教师版 internal/ingest/ingest.go 的"http.Get + 显式错误返回，不做隐式重试"骨架，
// 加一层封顶指数退避（250ms→1s→4s，最多 3 次），只在瞬时错误/429
// 上重试，其余错误直接透传，交由调用方（调度层/CLI）决定后续处理。
package crimefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
)

// Client 是 crimefeed 的 HTTP 客户端，BaseURL 通常是 config.CrimeFeedBaseURL。
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

var backoffSchedule = []time.Duration{250 * time.Millisecond, 1 * time.Second, 4 * time.Second}

type rawEvent struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	OutcomeStatus struct {
		Category string `json:"category"`
	} `json:"outcome_status"`
	LocationType        string `json:"location_type"`
	LocationSubtype     string `json:"location_subtype"`
	Month               string `json:"month"`
	LocationDescription string `json:"street"`
}

// BBoxTile is one geographic tile of the crime feed's bbox-based street-level endpoint.
type BBoxTile struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Fetch 按年月与一组包围盒瓦片拉取事件，流式产出 CrimeEvent；单个瓦片请求失败超过退避
// 上限后终止整个迭代并把错误传给调用方——重试只发生在外部网络边缘，写库路径不做隐式重试。
func (c *Client) Fetch(ctx context.Context, year int, month int, tiles []BBoxTile) iter.Seq2[gridmodel.CrimeEvent, error] {
	return func(yield func(gridmodel.CrimeEvent, error) bool) {
		monthKey := fmt.Sprintf("%04d-%02d", year, month)
		for _, tile := range tiles {
			body, err := c.fetchTileWithRetry(ctx, monthKey, tile)
			if err != nil {
				yield(gridmodel.CrimeEvent{}, err)
				return
			}
			var raws []rawEvent
			if err := json.Unmarshal(body, &raws); err != nil {
				if !yield(gridmodel.CrimeEvent{}, engineerr.Upstream("crimefeed.Fetch", "decode tile response", err)) {
					return
				}
				continue
			}
			for _, r := range raws {
				ev, err := toCrimeEvent(r, monthKey)
				if err != nil {
					logger.L().Warn("crimefeed_skip_event", "id", r.ID, "err", err)
					continue
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

func (c *Client) fetchTileWithRetry(ctx context.Context, monthKey string, tile BBoxTile) ([]byte, error) {
	url := fmt.Sprintf("%s/crimes-street/all-crime?poly=%.5f,%.5f:%.5f,%.5f:%.5f,%.5f:%.5f,%.5f&date=%s",
		c.BaseURL, tile.MinLat, tile.MinLon, tile.MinLat, tile.MaxLon, tile.MaxLat, tile.MaxLon, tile.MaxLat, tile.MinLon, monthKey)

	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, engineerr.Invalid("crimefeed.fetchTileWithRetry", "build request: "+err.Error())
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			lastErr = engineerr.Upstream("crimefeed.fetchTileWithRetry", "http do", err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case resp.StatusCode == http.StatusOK && readErr == nil:
				return body, nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = engineerr.Upstream("crimefeed.fetchTileWithRetry", fmt.Sprintf("transient status %d", resp.StatusCode), nil)
			default:
				return nil, engineerr.Upstream("crimefeed.fetchTileWithRetry", fmt.Sprintf("status %d", resp.StatusCode), readErr)
			}
		}

		if attempt < len(backoffSchedule) {
			metrics.IngestRetriesTotal.Inc()
			select {
			case <-time.After(backoffSchedule[attempt]):
			case <-ctx.Done():
				return nil, engineerr.Timeout("crimefeed.fetchTileWithRetry", "context cancelled during backoff", ctx.Err())
			}
		}
	}
	return nil, lastErr
}

func toCrimeEvent(r rawEvent, monthKey string) (gridmodel.CrimeEvent, error) {
	if r.ID == "" {
		return gridmodel.CrimeEvent{}, engineerr.Invalid("crimefeed.toCrimeEvent", "missing id")
	}
	var lat, lon float64
	if _, err := fmt.Sscanf(r.Location.Latitude, "%f", &lat); err != nil {
		return gridmodel.CrimeEvent{}, engineerr.Invalid("crimefeed.toCrimeEvent", "bad latitude")
	}
	if _, err := fmt.Sscanf(r.Location.Longitude, "%f", &lon); err != nil {
		return gridmodel.CrimeEvent{}, engineerr.Invalid("crimefeed.toCrimeEvent", "bad longitude")
	}
	month, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return gridmodel.CrimeEvent{}, engineerr.Invalid("crimefeed.toCrimeEvent", "bad month key")
	}
	return gridmodel.CrimeEvent{
		ExternalID:          r.ID,
		Month:               month,
		CategoryID:          r.Category,
		Lon:                 lon,
		Lat:                 lat,
		LocationDescription: r.LocationDescription,
	}, nil
}
