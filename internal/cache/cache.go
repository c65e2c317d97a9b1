// 包 cache：C7 Cache Coherence —— Redis 读穿透缓存与版本失效
// 背景：泛化 internal/localdb/dyncache.go 的"原子切换、写后立即对读路径生效"思路——那里用
// atomic.Value 在单进程内切换缓存实现，这里换成跨进程共享的 Redis 计数器，因为缓存本身
// 是跨进程共享的，进程内原子变量不够。聚合层每次成功的 Rebuild/IngestMonth 通过
// VersionBumpFunc 回调把新版本号镜像进这里，读路径的指纹里带上版本号，版本一变旧指纹自然失效。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
)

const versionKey = "saferoute:grid:version"

// Cache 包装一个可能为 nil 的 Redis 客户端；nil 时所有操作退化为"永远未命中"，
// 调用方无需额外判空即可在没有配置 Redis 的环境里正常运行。
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, cfg *config.Config) *Cache {
	return &Cache{rdb: rdb, ttl: time.Duration(cfg.CacheTTLSeconds) * time.Second}
}

// Fingerprint 确定性地标识一次查询：operation、bbox 或折线哈希、回溯月数、
// 时段、分类覆盖表、当前网格版本，一起做 SHA-256。
type Fingerprint struct {
	Operation         string
	SpatialKey        string // bbox string or polyline hash
	LookbackMonths    int
	TimeOfDay         config.TimeOfDay
	CategoryOverrides string // empty if none
	Version           int64
}

func (f Fingerprint) Key() string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s|%s|%d|%s|%s|%d", f.Operation, f.SpatialKey, f.LookbackMonths, f.TimeOfDay, f.CategoryOverrides, f.Version)
	return "saferoute:cache:" + hex.EncodeToString(h.Sum(nil))
}

// Get 尝试读取缓存值并反序列化进 dest；miss 与 disabled 都返回 (false, nil)。
// op 标注调用方（"snapshot" / "route"），用于 CacheHitsTotal/CacheMissesTotal 的维度切分。
func (c *Cache) Get(ctx context.Context, op, key string, dest any) (bool, error) {
	if c.rdb == nil {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		metrics.CacheMissesTotal.WithLabelValues(op).Inc()
		return false, nil
	}
	if err != nil {
		return false, engineerr.Upstream("cache.Get", "redis get", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, engineerr.Inconsistent("cache.Get", "cached value for "+key+" is not valid json")
	}
	metrics.CacheHitsTotal.WithLabelValues(op).Inc()
	return true, nil
}

// Set 写入缓存值，TTL 取自配置的默认值；nil 客户端下静默跳过。
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c.rdb == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return engineerr.Upstream("cache.Set", "marshal", err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return engineerr.Upstream("cache.Set", "redis set", err)
	}
	return nil
}

// CurrentVersion 读取镜像在 Redis 里的网格版本；未命中时回退到 0，
// 由调用方在指纹里当作"没有已知版本，直接算"处理。
func (c *Cache) CurrentVersion(ctx context.Context) (int64, error) {
	if c.rdb == nil {
		return 0, nil
	}
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, engineerr.Upstream("cache.CurrentVersion", "redis get", err)
	}
	return v, nil
}

// OnVersionBump 满足 aggregator.VersionBumpFunc 签名，供 cmd/saferoute-server/main.go
// 在装配阶段直接把两个包接起来，避免 aggregator 反向导入 cache（教师风格的显式组合）。
func (c *Cache) OnVersionBump(ctx context.Context, version int64) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, versionKey, version, 0).Err(); err != nil {
		logger.L().Warn("cache_version_mirror_failed", "version", version, "err", err)
	}
}
