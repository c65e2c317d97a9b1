// 包 engineerr：风险评分引擎的统一错误分类
// 背景：调用方（HTTP 层、调度层）需要按错误类别决定重试、告警或直接拒绝；
// 集中定义避免各包各自发明错误字符串导致分类漂移。
package engineerr

import (
	"errors"
	"fmt"
)

// Kind 是错误的分类标签，用于 HTTP 层映射状态码与调度层决定是否重试。
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUpstreamUnavailable
	KindBusy
	// KindStale 仅用于进程内部判断是否需要重新计算；从不向调用方返回。
	KindStale
	KindInconsistent
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindBusy:
		return "busy"
	case KindStale:
		return "stale"
	case KindInconsistent:
		return "inconsistent"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error 包装一个分类与原始原因，支持 errors.Is/errors.As 链路透传。
type Error struct {
	Kind   Kind
	Op     string // 发生错误的操作名，例如 "aggregator.Rebuild"
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op, reason string, err error) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason, Err: err}
}

func Invalid(op, reason string) *Error { return New(KindInvalidInput, op, reason, nil) }

func Upstream(op, reason string, err error) *Error {
	return New(KindUpstreamUnavailable, op, reason, err)
}

func Busy(op, reason string) *Error { return New(KindBusy, op, reason, nil) }

func Stale(op, reason string) *Error { return New(KindStale, op, reason, nil) }

func Inconsistent(op, reason string) *Error { return New(KindInconsistent, op, reason, nil) }

func Timeout(op, reason string, err error) *Error { return New(KindTimeout, op, reason, err) }

// KindOf 提取错误链上第一个 *Error 的分类；非本包错误一律视为 upstream_unavailable，
// 因为它们通常源自数据库驱动或网络客户端，调用方应当按上游故障处理。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUpstreamUnavailable
}

// Is 判断错误链上是否存在给定分类的 *Error。
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
