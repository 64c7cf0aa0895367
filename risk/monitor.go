package risk

import (
	"context"
	"fmt"
	"time"

	"perpcore/logger"
	"perpcore/utils"
)

// BalanceFetcher 资金查询函数
type BalanceFetcher func(ctx context.Context) (equity float64, available float64, err error)

// EstablishBaseline 建立初始资金基准
// 最多尝试 5 次，间隔 5 秒；首次成功的权益值即为进程生命周期内不变的基准
func EstablishBaseline(ctx context.Context, fetch BalanceFetcher) (float64, error) {
	logger.Info("💰 建立风险基准...")

	var initialCapital float64
	policy := utils.RetryPolicy{
		MaxAttempts: 5,
		Backoff:     utils.FixedBackoff(5 * time.Second),
	}

	err := policy.Do(ctx, "获取初始资金", func() error {
		equity, _, err := fetch(ctx)
		if err != nil {
			return err
		}
		initialCapital = equity
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("无法建立初始资金基准: %w", err)
	}

	logger.Info("✅ 风险基准已设定: $%.2f", initialCapital)
	return initialCapital, nil
}

// Drawdown 相对初始资金的回撤比例，基准或权益非正时返回 0
func Drawdown(initialCapital, equity float64) float64 {
	if initialCapital <= 0 || equity <= 0 {
		return 0
	}
	return (initialCapital - equity) / initialCapital
}

// ExceedsLimit 回撤是否触发告警，必须严格大于阈值
func ExceedsLimit(drawdown, limit float64) bool {
	return drawdown > limit
}
