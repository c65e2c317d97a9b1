// 文档注释：测地线切分与 stadium 缓冲多边形
// 背景：沿用 internal/revgeo/kdtree.go 里已经存在的 haversine 公式，把"点到质心距离"泛化成
// "沿折线累积距离并在约 100 米处切段"；缓冲区用局部等距投影（以段中点纬度为基准）近似成
// 平面，再在平面里画一个两端带半圆帽的 stadium，最后投影回经纬度。
package routescorer

import (
	"math"

	"github.com/saferoute/risk-engine/internal/gridmodel"
)

const earthRadiusMeters = 6371000.0

// haversineMeters 是 internal/revgeo/kdtree.go 里 haversine() 的米制版本。
func haversineMeters(a, b gridmodel.Point) float64 {
	lat1, lon1 := a.Lat*math.Pi/180, a.Lon*math.Pi/180
	lat2, lon2 := b.Lat*math.Pi/180, b.Lon*math.Pi/180
	dLat := lat2 - lat1
	dLon := lon2 - lon1
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func interpolate(a, b gridmodel.Point, frac float64) gridmodel.Point {
	return gridmodel.Point{
		Lon: a.Lon + (b.Lon-a.Lon)*frac,
		Lat: a.Lat + (b.Lat-a.Lat)*frac,
	}
}

func midpoint(a, b gridmodel.Point) gridmodel.Point {
	return interpolate(a, b, 0.5)
}

// Segment 是折线上的一段，Index 从 0 连续编号。
type Segment struct {
	Index    int
	Start    gridmodel.Point
	End      gridmodel.Point
	Vertices []gridmodel.Point
}

const segmentTargetMeters = 100.0

// Segmentize walks the polyline and emits a new segment every time the accumulated sub-polyline
// length reaches segmentTargetMeters (geodesic meters, not a degree constant).
func Segmentize(vertices []gridmodel.Point) []Segment {
	if len(vertices) < 2 {
		return nil
	}
	var segments []Segment
	segStart := vertices[0]
	segVerts := []gridmodel.Point{vertices[0]}
	accum := 0.0
	idx := 0

	for i := 0; i < len(vertices)-1; i++ {
		a, b := vertices[i], vertices[i+1]
		edgeLen := haversineMeters(a, b)
		if edgeLen == 0 {
			continue
		}
		traveled := 0.0
		for accum+(edgeLen-traveled) >= segmentTargetMeters {
			needed := segmentTargetMeters - accum
			frac := (traveled + needed) / edgeLen
			if frac > 1 {
				frac = 1
			}
			cut := interpolate(a, b, frac)
			segVerts = append(segVerts, cut)
			segments = append(segments, Segment{Index: idx, Start: segStart, End: cut, Vertices: segVerts})
			idx++
			segStart = cut
			segVerts = []gridmodel.Point{cut}
			traveled += needed
			accum = 0
		}
		accum += edgeLen - traveled
		segVerts = append(segVerts, b)
	}
	if len(segVerts) > 1 {
		segments = append(segments, Segment{Index: idx, Start: segStart, End: vertices[len(vertices)-1], Vertices: segVerts})
	}
	return segments
}

// bufferStadium 在以段中点纬度为基准的局部等距投影里画一个宽 2*bufferM 的 stadium，
// 两端各用 capSteps 个采样点近似半圆，再投影回经纬度，闭合成环。
func bufferStadium(seg Segment, bufferM float64) gridmodel.Polygon {
	const capSteps = 6
	lat0 := (seg.Start.Lat + seg.End.Lat) / 2
	mPerDegLat := 111320.0
	mPerDegLon := 111320.0 * math.Cos(lat0*math.Pi/180)
	if mPerDegLon == 0 {
		mPerDegLon = 1e-9
	}

	toXY := func(p gridmodel.Point) (float64, float64) { return p.Lon * mPerDegLon, p.Lat * mPerDegLat }
	fromXY := func(x, y float64) gridmodel.Point { return gridmodel.Point{Lon: x / mPerDegLon, Lat: y / mPerDegLat} }

	ax, ay := toXY(seg.Start)
	bx, by := toXY(seg.End)
	dx, dy := bx-ax, by-ay
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	ux, uy := dx/length, dy/length
	px, py := -uy, ux

	var xy [][2]float64
	xy = append(xy, [2]float64{ax + px*bufferM, ay + py*bufferM})
	xy = append(xy, [2]float64{bx + px*bufferM, by + py*bufferM})
	for i := 1; i < capSteps; i++ {
		theta := math.Pi * float64(i) / float64(capSteps)
		xy = append(xy, [2]float64{bx + (px*math.Cos(theta)+ux*math.Sin(theta))*bufferM, by + (py*math.Cos(theta)+uy*math.Sin(theta))*bufferM})
	}
	xy = append(xy, [2]float64{bx - px*bufferM, by - py*bufferM})
	xy = append(xy, [2]float64{ax - px*bufferM, ay - py*bufferM})
	for i := 1; i < capSteps; i++ {
		theta := math.Pi * float64(i) / float64(capSteps)
		xy = append(xy, [2]float64{ax - (px*math.Cos(theta)+ux*math.Sin(theta))*bufferM, ay - (py*math.Cos(theta)+uy*math.Sin(theta))*bufferM})
	}
	xy = append(xy, xy[0])

	ring := make([]gridmodel.Point, len(xy))
	for i, p := range xy {
		ring[i] = fromXY(p[0], p[1])
	}
	return gridmodel.Polygon{Rings: [][]gridmodel.Point{ring}}
}
