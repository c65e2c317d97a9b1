// 包 gridmodel：Crime-Risk Scoring Engine 的核心数据模型
// 背景：CrimeEvent/CrimeCategory/SafetyCell 及其不变式 I1-I5 是聚合与查询两侧共享的唯一真源；
// 任何一侧各自定义结构都会导致 I1(count 守恒)/I4(cell_id 唯一) 类不变式在实现层面分叉。
package gridmodel

import (
	"time"

	"github.com/saferoute/risk-engine/internal/config"
)

// CrimeCategory 是固定分类表中的一行；一次性种入，运行期只读。
type CrimeCategory struct {
	ID         string
	HarmWeight float64
	TOD        map[config.TimeOfDay]float64
}

// TODMultiplier 返回该分类在给定时段的乘数；未配置的时段视为 1（不放大也不抑制）。
func (c CrimeCategory) TODMultiplier(tod config.TimeOfDay) float64 {
	if c.TOD == nil {
		return 1.0
	}
	if v, ok := c.TOD[tod]; ok {
		return v
	}
	return 1.0
}

// OtherCategoryID 是 I5 规定的兜底分类：未登记的分类在聚合前必须归一到这里。
const OtherCategoryID = "other"

// CrimeEvent 是一条不可变的历史事件；由摄取创建，从不被修改。
type CrimeEvent struct {
	ExternalID           string
	Month                time.Time // 月份首日，UTC
	CategoryID           string
	Lon, Lat             float64
	ForceID              string
	OutputArea           string
	LocationDescription  string
}

// NormalizedCategory 应用 I5：把未登记分类归一为 OtherCategoryID。
func NormalizedCategory(id string, known map[string]CrimeCategory) string {
	if _, ok := known[id]; ok {
		return id
	}
	return OtherCategoryID
}

// SafetyCell 是一个 (h3_index, month) 聚合桶，所有读操作的最小单位。
type SafetyCell struct {
	CellID              string
	H3Index             string
	Month               time.Time
	CrimeCountTotal     int
	CrimeCountWeighted  float64
	Stats               map[string]int // category -> count, sums to CrimeCountTotal (I1)
	Geom                Polygon
	UpdatedAt           time.Time
}

// CellID 按约定格式生成："{h3_index}_{YYYYMM}"。
func CellID(h3Index string, month time.Time) string {
	return h3Index + "_" + month.Format("200601")
}

// Point 是一个 WGS84 经纬度点，(lon, lat) 顺序与 GeoJSON 一致。
type Point struct {
	Lon, Lat float64
}

// Polygon 是一个闭合环的集合；首环为外边界，其余为洞（本域不使用洞，但保留形状以兼容 GeoJSON）。
type Polygon struct {
	Rings [][]Point
}

// Closed 校验多边形的每个环首尾坐标重复，满足"闭合多边形"约束。
func (p Polygon) Closed() bool {
	for _, ring := range p.Rings {
		if len(ring) < 4 {
			return false
		}
		first, last := ring[0], ring[len(ring)-1]
		if first.Lon != last.Lon || first.Lat != last.Lat {
			return false
		}
	}
	return true
}

// Envelope 返回多边形的经纬度包围盒 (minLon, minLat, maxLon, maxLat)，供 R-tree 使用。
func (p Polygon) Envelope() (minLon, minLat, maxLon, maxLat float64) {
	first := true
	for _, ring := range p.Rings {
		for _, pt := range ring {
			if first {
				minLon, maxLon = pt.Lon, pt.Lon
				minLat, maxLat = pt.Lat, pt.Lat
				first = false
				continue
			}
			if pt.Lon < minLon {
				minLon = pt.Lon
			}
			if pt.Lon > maxLon {
				maxLon = pt.Lon
			}
			if pt.Lat < minLat {
				minLat = pt.Lat
			}
			if pt.Lat > maxLat {
				maxLat = pt.Lat
			}
		}
	}
	return
}
