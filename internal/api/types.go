// 包 api：对外 JSON 契约
// 背景：与教师版 internal/api 同样的思路——对外只暴露一个稳定、精简的序列化结构
// （教师原来的 queryResult 是这一约定在 IP 归属地场景下的版本），内部类型
// （snapshot.Result、routescorer.RouteResult）的字段改名不应直接影响响应体。
package api

type snapshotCellOut struct {
	H3Index    string         `json:"h3_index"`
	Geometry   geoJSONPolygon `json:"geometry"`
	CrimeCount crimeCountOut  `json:"crime_count"`

	RiskScore   float64 `json:"risk_score"`
	SafetyScore float64 `json:"safety_score"`
	RiskClass   string  `json:"risk_class"`
}

type crimeCountOut struct {
	Total     int            `json:"total"`
	Breakdown map[string]int `json:"breakdown"`
}

type snapshotSummaryOut struct {
	CellCount    int     `json:"cell_count"`
	TotalCrimes  int     `json:"total_crimes"`
	MeanSafety   float64 `json:"mean_safety"`
	ArgMaxRiskH3 string  `json:"argmax_risk_h3"`
	ArgMinRiskH3 string  `json:"argmin_risk_h3"`
}

type snapshotOut struct {
	Cells   []snapshotCellOut  `json:"cells"`
	Summary snapshotSummaryOut `json:"summary"`
	Meta    snapshotMetaOut    `json:"meta"`
}

type snapshotMetaOut struct {
	BBox           [4]float64 `json:"bbox"` // [min_lon, min_lat, max_lon, max_lat], echoed from the request
	CellSizeMeters float64    `json:"cell_size_m"`
	GridType       string     `json:"grid_type"`
	MonthsIncluded []string   `json:"months_included"`
}

type geoJSONPolygon struct {
	Type        string          `json:"type"`
	Coordinates [][][2]float64  `json:"coordinates"`
}

type pointOut struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type segmentOut struct {
	Index             int      `json:"segment_index"`
	Midpoint          pointOut `json:"midpoint"`
	IntersectingCells int      `json:"intersecting_cells"`
	RiskScore         float64  `json:"risk_score"`
}

type hotspotOut struct {
	SegmentIndex int      `json:"segment_index"`
	Midpoint     pointOut `json:"midpoint"`
	RiskLevel    string   `json:"risk_level"`
	Description  string   `json:"description"`
	RiskScore    float64  `json:"risk_score"`
}

type routeOut struct {
	Segments       []segmentOut   `json:"segments"`
	RiskScore      float64        `json:"risk_score"`
	SafetyScore    float64        `json:"safety_score"`
	RiskClass      string         `json:"risk_class"`
	Hotspots       []hotspotOut   `json:"hotspots"`
	CrimeBreakdown map[string]int `json:"crime_breakdown"`
	IsRecommended  bool           `json:"is_recommended"`
}

type routeBatchOut struct {
	Routes []routeOut `json:"routes"`
}

type errorOut struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

type routeCandidateIn struct {
	Polyline       [][2]float64 `json:"polyline"` // [lon, lat] pairs
	DistanceMeters float64      `json:"distance_meters,omitempty"`
	DurationSecs   float64      `json:"duration_secs,omitempty"`
}

type routesSafeRequest struct {
	Candidates     []routeCandidateIn `json:"candidates"`
	LookbackMonths int                `json:"lookback_months"`
	TimeOfDay      string             `json:"time_of_day,omitempty"`
}
