// 包 middleware：进程内令牌桶限流，套在 HTTP 入口最外层
// 背景：泛化教师版 internal/middleware/ratelimit.go 的令牌桶思路；教师版还耦合了
// EdgeOne 头解析与 origindefense 源站防御，两者都是 IP 归属地网关特有的边缘设施，
// SafeRoute 没有对应部署形态，已整体去掉（见 DESIGN.md）。限速开关与速率改由
// internal/config.Config 驱动，不再直接读环境变量。
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/saferoute/risk-engine/internal/config"
)

// TokenBucket 是每秒重填一次的令牌桶：简化实现，不排队，令牌耗尽直接拒绝。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
}

func (tb *TokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := time.Now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wrap 按配置在 next 前套一层限速；RateLimitEnabled=false 时原样透传。
func Wrap(next http.Handler, cfg *config.Config) http.Handler {
	if !cfg.RateLimitEnabled {
		return next
	}
	qps := cfg.RateLimitQPS
	if qps <= 0 {
		qps = 50
	}
	tb := &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix()}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tb.allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
