package utils

import (
	"context"
	"fmt"
	"time"

	"perpcore/logger"
)

// RetryPolicy 重试策略（最大次数 + 退避函数 + 可重试判定）
// 传输层、下单、资金基准获取等调用点各自用不同参数实例化，避免重复手写循环
type RetryPolicy struct {
	MaxAttempts int                             // 最大尝试次数（含首次）
	Backoff     func(attempt int) time.Duration // 第 attempt 次失败后的等待时间（attempt 从 1 开始）
	Retryable   func(err error) bool            // 返回 false 表示终态错误，立即放弃；nil 表示全部可重试
}

// LinearBackoff 线性退避：第 n 次失败后等待 n*step
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// FixedBackoff 固定退避：每次失败后等待相同时长
func FixedBackoff(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration {
		return d
	}
}

// Do 按策略执行 fn：成功即返回；遇到不可重试错误立即返回；次数耗尽返回包装后的最后错误
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			// 终态错误，交由调用方在语义层决定是否重试
			return lastErr
		}

		if attempt < p.MaxAttempts {
			logger.Warn("⚠️ [%s] 第 %d/%d 次尝试失败: %v，稍后重试...", op, attempt, p.MaxAttempts, lastErr)
			wait := time.Duration(0)
			if p.Backoff != nil {
				wait = p.Backoff(attempt)
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}

	return fmt.Errorf("%s 重试 %d 次后仍然失败: %w", op, p.MaxAttempts, lastErr)
}
