// 包 h3grid：对 github.com/uber/h3-go/v4 的最小化封装
// 背景：引擎处处假定分辨率固定为 10（约 73m 边长）；把分辨率校验与类型转换集中到这一个薄封装包，
// 避免调用方各自拼接/解析 h3 索引字符串，参照 internal/revgeo/pip.go、geohash.go 的小型专用包风格。
// 约束：本包只做纯函数封装，不持有任何状态；h3 库本身也是无状态的，可以安全地被多个请求并发共享。
package h3grid

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/saferoute/risk-engine/internal/gridmodel"
)

// Resolution 是引擎全局固定的 H3 分辨率；任何解析出非该分辨率的 cell 都是配置错误。
const Resolution = 10

// AverageEdgeMeters 是分辨率 10 六边形的平均边长，供响应元数据回显网格尺度；
// 不参与任何计算，纯粹是给调用方的人类可读信息。
const AverageEdgeMeters = 73.0

// GridType 标识响应元数据里的网格类型，固定为六边形 H3 网格。
const GridType = "h3_hexagonal"

// CellOf 把 (lat, lon) 编码为分辨率 10 的 H3 索引（十六进制字符串形式）。
func CellOf(lat, lon float64) (string, error) {
	cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, Resolution)
	if !cell.IsValid() {
		return "", fmt.Errorf("h3grid: no valid resolution-%d cell for (%f,%f)", Resolution, lat, lon)
	}
	return cell.String(), nil
}

// parseCell 解析十六进制 H3 字符串并校验分辨率，拒绝非分辨率 10 的 cell。
func parseCell(h3Index string) (h3.Cell, error) {
	cell := h3.Cell(h3.IndexFromString(h3Index))
	if !cell.IsValid() {
		return 0, fmt.Errorf("h3grid: invalid h3 index %q", h3Index)
	}
	if cell.Resolution() != Resolution {
		return 0, fmt.Errorf("h3grid: h3 index %q is resolution %d, want %d", h3Index, cell.Resolution(), Resolution)
	}
	return cell, nil
}

// BoundaryOf 返回 cell 的闭合多边形边界（WGS84），首尾坐标重复，满足闭合多边形约束。
func BoundaryOf(h3Index string) (gridmodel.Polygon, error) {
	cell, err := parseCell(h3Index)
	if err != nil {
		return gridmodel.Polygon{}, err
	}
	boundary := cell.Boundary()
	ring := make([]gridmodel.Point, 0, len(boundary)+1)
	for _, v := range boundary {
		ring = append(ring, gridmodel.Point{Lon: v.Lng, Lat: v.Lat})
	}
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return gridmodel.Polygon{Rings: [][]gridmodel.Point{ring}}, nil
}

// AreNeighbors 报告两个 cell 是否在 H3 网格上直接相邻。
func AreNeighbors(a, b string) (bool, error) {
	ca, err := parseCell(a)
	if err != nil {
		return false, err
	}
	cb, err := parseCell(b)
	if err != nil {
		return false, err
	}
	return ca.IsNeighbor(cb), nil
}

// ResolutionOf 返回 h3Index 的分辨率，不强制要求等于 Resolution（供诊断/健康检查使用）。
func ResolutionOf(h3Index string) (int, error) {
	cell := h3.Cell(h3.IndexFromString(h3Index))
	if !cell.IsValid() {
		return 0, fmt.Errorf("h3grid: malformed h3 index %q", h3Index)
	}
	return cell.Resolution(), nil
}
