// 文档注释：内部结果类型到对外 JSON 契约的转换
package api

import (
	"fmt"
	"strings"

	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/h3grid"
	"github.com/saferoute/risk-engine/internal/routescorer"
	"github.com/saferoute/risk-engine/internal/snapshot"
)

// routeBatchSpatialKey builds the "polyline hash" component of a route-score cache
// fingerprint: every candidate's full coordinate list, in request order.
func routeBatchSpatialKey(inputs []routescorer.RouteInput) string {
	var b strings.Builder
	for i, in := range inputs {
		if i > 0 {
			b.WriteByte('|')
		}
		for _, p := range in.Polyline {
			fmt.Fprintf(&b, "%.6f,%.6f;", p.Lon, p.Lat)
		}
	}
	return b.String()
}

func toGeoJSON(p gridmodel.Polygon) geoJSONPolygon {
	rings := make([][][2]float64, len(p.Rings))
	for i, ring := range p.Rings {
		coords := make([][2]float64, len(ring))
		for j, pt := range ring {
			coords[j] = [2]float64{pt.Lon, pt.Lat}
		}
		rings[i] = coords
	}
	return geoJSONPolygon{Type: "Polygon", Coordinates: rings}
}

func toSnapshotOut(r *snapshot.Result, bbox [4]float64) snapshotOut {
	cells := make([]snapshotCellOut, len(r.Cells))
	for i, c := range r.Cells {
		cells[i] = snapshotCellOut{
			H3Index:  c.H3Index,
			Geometry: toGeoJSON(c.Geometry),
			CrimeCount: crimeCountOut{
				Total:     c.CrimeCountTotal,
				Breakdown: c.CrimeBreakdown,
			},
			RiskScore:   c.RiskScore,
			SafetyScore: c.SafetyScore,
			RiskClass:   string(c.RiskClass),
		}
	}
	return snapshotOut{
		Cells: cells,
		Summary: snapshotSummaryOut{
			CellCount:    r.Summary.CellCount,
			TotalCrimes:  r.Summary.TotalCrimes,
			MeanSafety:   r.Summary.MeanSafety,
			ArgMaxRiskH3: r.Summary.ArgMaxRiskH3,
			ArgMinRiskH3: r.Summary.ArgMinRiskH3,
		},
		Meta: snapshotMetaOut{
			BBox:           bbox,
			CellSizeMeters: h3grid.AverageEdgeMeters,
			GridType:       h3grid.GridType,
			MonthsIncluded: r.MonthsIncluded,
		},
	}
}

func toRouteOut(r *routescorer.RouteResult) routeOut {
	segments := make([]segmentOut, len(r.Segments))
	for i, s := range r.Segments {
		segments[i] = segmentOut{
			Index:             s.Index,
			Midpoint:          pointOut{Lon: s.Midpoint.Lon, Lat: s.Midpoint.Lat},
			IntersectingCells: s.IntersectingCells,
			RiskScore:         s.Risk,
		}
	}
	hotspots := make([]hotspotOut, len(r.Hotspots))
	for i, h := range r.Hotspots {
		hotspots[i] = hotspotOut{
			SegmentIndex: h.SegmentIndex,
			Midpoint:     pointOut{Lon: h.Midpoint.Lon, Lat: h.Midpoint.Lat},
			RiskLevel:    h.RiskLevel,
			Description:  h.Description,
			RiskScore:    h.RiskScore,
		}
	}
	return routeOut{
		Segments:       segments,
		RiskScore:      r.RiskScore,
		SafetyScore:    r.SafetyScore,
		RiskClass:      string(r.RiskClass),
		Hotspots:       hotspots,
		CrimeBreakdown: r.CrimeBreakdown,
		IsRecommended:  r.IsRecommended,
	}
}
