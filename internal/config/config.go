// 包 config：环境变量驱动的配置装载，集中管理数据库/缓存连接与查询边界枚举
// 背景：避免各包各自读取 os.Getenv 导致默认值分散；HTTP 层的闭合枚举校验也在此定义，
// 保证非法的 time_of_day/lookback_months 在进入 C4/C5/C6 之前就被拒绝。
package config

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

// TimeOfDay 是查询边界允许的闭合枚举，未命中任何分支即为非法输入。
type TimeOfDay string

const (
	TimeOfDayNight   TimeOfDay = "night"
	TimeOfDayMorning TimeOfDay = "morning"
	TimeOfDayDay     TimeOfDay = "day"
	TimeOfDayEvening TimeOfDay = "evening"
)

func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	switch TimeOfDay(s) {
	case TimeOfDayNight, TimeOfDayMorning, TimeOfDayDay, TimeOfDayEvening:
		return TimeOfDay(s), true
	default:
		return "", false
	}
}

const (
	MinLookbackMonths = 1
	MaxLookbackMonths = 24
)

// ValidLookbackMonths 校验月数落在 [1,24] 闭区间内，越界视为非法输入。
func ValidLookbackMonths(n int) bool { return n >= MinLookbackMonths && n <= MaxLookbackMonths }

// Config 聚合进程启动所需的全部外部依赖地址与可调参数。
type Config struct {
	Addr string

	PostgresDSN  string
	PGMaxOpen    int
	PGMaxIdle    int
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	RedisEnabled bool

	CacheTTLSeconds int
	HarmWeightsPath string

	RateLimitEnabled bool
	RateLimitQPS     int

	SoutheamptonBBox [4]float64 // lat_min,lng_min,lat_max,lng_max — default coverage area

	CrimeFeedBaseURL string
	RoutingProviderURL string

	AdminToken string
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// FromEnv 读取环境变量并填充默认值；不做网络连接，仅装配配置值。
func FromEnv() *Config {
	c := &Config{
		Addr:               getenvDefault("ADDR", ":8080"),
		PostgresDSN:        buildPostgresDSN(),
		PGMaxOpen:          getenvInt("PG_MAX_OPEN_CONNS", 50),
		PGMaxIdle:          getenvInt("PG_MAX_IDLE_CONNS", 25),
		RedisAddr:          getenvDefault("REDIS_HOST", "127.0.0.1") + ":" + getenvDefault("REDIS_PORT", "6379"),
		RedisPass:          os.Getenv("REDIS_PASS"),
		RedisDB:            getenvInt("REDIS_DB", 0),
		RedisEnabled:       getenvDefault("REDIS_ENABLED", "true") == "true",
		CacheTTLSeconds:    getenvInt("CACHE_TTL_SECONDS", 900),
		HarmWeightsPath:    os.Getenv("HARM_WEIGHTS_PATH"),
		RateLimitEnabled:   os.Getenv("RATE_LIMIT_ENABLED") == "true",
		RateLimitQPS:       getenvInt("RATE_LIMIT_QPS", 50),
		CrimeFeedBaseURL:   getenvDefault("CRIME_FEED_BASE_URL", "https://data.police.uk/api"),
		RoutingProviderURL: os.Getenv("ROUTING_PROVIDER_URL"),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
	}
	c.SoutheamptonBBox = [4]float64{50.88, -1.50, 50.95, -1.35}
	return c
}

func buildPostgresDSN() string {
	host := getenvDefault("PG_HOST", "localhost")
	port := getenvDefault("PG_PORT", "5432")
	user := getenvDefault("PG_USER", "postgres")
	pass := os.Getenv("PG_PASSWORD")
	db := getenvDefault("PG_DB", "saferoute")
	ssl := getenvDefault("PG_SSLMODE", "disable")
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

// OpenPostgres 打开连接池并按配置设置最大连接数，镜像既有的数据库访问层习惯。
func (c *Config) OpenPostgres() (*sql.DB, error) {
	db, err := sql.Open("postgres", c.PostgresDSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.PGMaxOpen)
	db.SetMaxIdleConns(c.PGMaxIdle)
	return db, nil
}

// OpenRedis 按配置打开 Redis 客户端；RedisEnabled=false 时返回 nil，调用方需要判空。
func (c *Config) OpenRedis() *redis.Client {
	if !c.RedisEnabled {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB})
}
