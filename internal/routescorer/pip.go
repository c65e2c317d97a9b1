// 文档注释：缓冲多边形与格子多边形的相交判定
// 背景：泛化 internal/revgeo/pip.go 的射线法 pointInPoly/pointInRing——那里是"点是否在行政区内"，
// 这里改成"两个多边形是否相交"，通过互相采样顶点做命中测试；两多边形均为非自交的简单环，
// 对 stadium-vs-hexagon 这种尺度的形状足够稳定。
package routescorer

import "github.com/saferoute/risk-engine/internal/gridmodel"

func pointInRing(pt gridmodel.Point, ring []gridmodel.Point) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	inside := false
	x, y := pt.Lon, pt.Lat
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		intersect := ((yi > y) != (yj > y)) && (x < (xj-xi)*(y-yi)/(yj-yi+1e-12)+xi)
		if intersect {
			inside = !inside
		}
	}
	return inside
}

func pointInPoly(pt gridmodel.Point, poly gridmodel.Polygon) bool {
	if len(poly.Rings) == 0 {
		return false
	}
	if !pointInRing(pt, poly.Rings[0]) {
		return false
	}
	for i := 1; i < len(poly.Rings); i++ {
		if pointInRing(pt, poly.Rings[i]) {
			return false
		}
	}
	return true
}

func envelopesOverlap(a, b [4]float64) bool {
	return a[0] <= b[2] && a[2] >= b[0] && a[1] <= b[3] && a[3] >= b[1]
}

// polygonsIntersect 以顶点互测近似判定两多边形是否相交：任一方的顶点落在另一方内部即判定相交，
// 对 stadium 缓冲区这种凸形状与六边形格子足以覆盖绝大多数真实相交情形。
func polygonsIntersect(a, b gridmodel.Polygon) bool {
	if len(a.Rings) == 0 || len(b.Rings) == 0 {
		return false
	}
	aMinLon, aMinLat, aMaxLon, aMaxLat := a.Envelope()
	bMinLon, bMinLat, bMaxLon, bMaxLat := b.Envelope()
	if !envelopesOverlap([4]float64{aMinLon, aMinLat, aMaxLon, aMaxLat}, [4]float64{bMinLon, bMinLat, bMaxLon, bMaxLat}) {
		return false
	}
	for _, pt := range a.Rings[0] {
		if pointInPoly(pt, b) {
			return true
		}
	}
	for _, pt := range b.Rings[0] {
		if pointInPoly(pt, a) {
			return true
		}
	}
	return false
}
