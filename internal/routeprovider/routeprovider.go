// 包 routeprovider：黑盒路由提供方客户端
// 背景：SafeRoute 不自己算路，只消费一个外部路由服务返回的候选折线；这里只负责把那个
// HTTP 响应适配成 internal/routescorer.RouteInput 的原始输入（Polyline/Distance/Duration），
// 出错统一包装为 engineerr.Upstream，不做业务语义判断。
package routeprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
)

// Client 持有黑盒路由服务的地址；BaseURL 为空时 Routes 直接返回 upstream_unavailable 类错误（engineerr.Upstream），
// 这样没有配置外部路由提供方的部署也能正常装配出一个可用（但总是失败）的客户端。
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTPClient: &http.Client{Timeout: 10 * time.Second}}
}

// Candidate is one raw candidate route as returned by the upstream provider.
type Candidate struct {
	Polyline       []gridmodel.Point
	DistanceMeters float64
	DurationSecs   float64
}

type rawResponse struct {
	Routes []struct {
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		DistanceMeters float64 `json:"distance"`
		DurationSecs   float64 `json:"duration"`
	} `json:"routes"`
}

// Routes fetches candidate polylines between two points from the configured black-box provider.
func (c *Client) Routes(ctx context.Context, fromLon, fromLat, toLon, toLat float64) ([]Candidate, error) {
	if c.BaseURL == "" {
		return nil, engineerr.Upstream("routeprovider.Routes", "no routing provider configured", nil)
	}
	url := fmt.Sprintf("%s/route?from=%.6f,%.6f&to=%.6f,%.6f", c.BaseURL, fromLon, fromLat, toLon, toLat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, engineerr.Invalid("routeprovider.Routes", "build request: "+err.Error())
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, engineerr.Upstream("routeprovider.Routes", "http do", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, engineerr.Upstream("routeprovider.Routes", "read body", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, engineerr.Upstream("routeprovider.Routes", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	var raw rawResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, engineerr.Upstream("routeprovider.Routes", "decode response", err)
	}

	candidates := make([]Candidate, 0, len(raw.Routes))
	for _, r := range raw.Routes {
		poly := make([]gridmodel.Point, len(r.Geometry.Coordinates))
		for i, c := range r.Geometry.Coordinates {
			poly[i] = gridmodel.Point{Lon: c[0], Lat: c[1]}
		}
		if len(poly) < 2 {
			continue
		}
		candidates = append(candidates, Candidate{Polyline: poly, DistanceMeters: r.DistanceMeters, DurationSecs: r.DurationSecs})
	}
	if len(candidates) == 0 {
		return nil, engineerr.Upstream("routeprovider.Routes", "provider returned no usable routes", nil)
	}
	return candidates, nil
}
