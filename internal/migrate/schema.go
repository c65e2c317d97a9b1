// 包 migrate：首次运行自动创建 SafeRoute 引擎所需的表、索引与种子行
package migrate

import (
	"database/sql"

	"github.com/saferoute/risk-engine/internal/logger"
)

// 背景：首次运行自动创建所需表与索引，保障后续导入与聚合查询
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS crime_categories (
            id TEXT PRIMARY KEY,
            harm_weight DOUBLE PRECISION NOT NULL,
            tod_night DOUBLE PRECISION NOT NULL DEFAULT 1.0,
            tod_morning DOUBLE PRECISION NOT NULL DEFAULT 1.0,
            tod_day DOUBLE PRECISION NOT NULL DEFAULT 1.0,
            tod_evening DOUBLE PRECISION NOT NULL DEFAULT 1.0
        )`,
		`CREATE TABLE IF NOT EXISTS crime_events (
            external_id TEXT PRIMARY KEY,
            month DATE NOT NULL,
            category_id TEXT NOT NULL REFERENCES crime_categories(id),
            lon DOUBLE PRECISION NOT NULL,
            lat DOUBLE PRECISION NOT NULL,
            force_id TEXT NOT NULL DEFAULT '',
            output_area TEXT NOT NULL DEFAULT '',
            location_description TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_crime_events_month ON crime_events(month)`,
		`CREATE INDEX IF NOT EXISTS idx_crime_events_month_bbox ON crime_events(month, lon, lat)`,
		`CREATE TABLE IF NOT EXISTS safety_cells (
            cell_id TEXT PRIMARY KEY,
            h3_index TEXT NOT NULL,
            month DATE NOT NULL,
            crime_count_total INT NOT NULL DEFAULT 0,
            crime_count_weighted DOUBLE PRECISION NOT NULL DEFAULT 0,
            stats JSONB NOT NULL DEFAULT '{}'::jsonb,
            geom GEOGRAPHY(POLYGON,4326) NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_safety_cells_h3_month ON safety_cells(h3_index, month)`,
		`CREATE INDEX IF NOT EXISTS idx_safety_cells_geom ON safety_cells USING GIST(geom)`,
		`CREATE INDEX IF NOT EXISTS idx_safety_cells_month_desc ON safety_cells(month DESC)`,
		`CREATE TABLE IF NOT EXISTS grid_versions (
            id INT PRIMARY KEY,
            version BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO grid_versions(id, version) VALUES(1, 0) ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS aggregation_locks (
            month_key TEXT PRIMARY KEY,
            locked_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
