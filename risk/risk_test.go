package risk

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEstablishBaselineFirstSuccess(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (float64, float64, error) {
		calls++
		return 10000, 9000, nil
	}

	got, err := EstablishBaseline(context.Background(), fetch)
	if err != nil {
		t.Fatalf("EstablishBaseline 失败: %v", err)
	}
	if got != 10000 {
		t.Errorf("基准 = %v, 期望 10000", got)
	}
	if calls != 1 {
		t.Errorf("首次成功不应重试: calls=%d", calls)
	}
}

func TestEstablishBaselineRetries(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (float64, float64, error) {
		calls++
		if calls < 3 {
			return 0, 0, errors.New("temporarily unavailable")
		}
		return 8000, 7000, nil
	}

	got, err := EstablishBaseline(context.Background(), fetch)
	if err != nil {
		t.Fatalf("EstablishBaseline 失败: %v", err)
	}
	if got != 8000 {
		t.Errorf("基准 = %v, 期望 8000", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, 期望 3", calls)
	}
}

func TestEstablishBaselineExhausted(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (float64, float64, error) {
		calls++
		return 0, 0, errors.New("down")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// 不等完整的 5 次 5 秒间隔，验证 ctx 取消路径
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	if _, err := EstablishBaseline(ctx, fetch); err == nil {
		t.Fatal("持续失败应返回错误")
	}
}

func TestDrawdown(t *testing.T) {
	if got := Drawdown(10000, 9000); got != 0.10 {
		t.Errorf("Drawdown = %v, 期望 0.10", got)
	}
	if got := Drawdown(0, 9000); got != 0 {
		t.Errorf("零基准应返回 0，实际 %v", got)
	}
	if got := Drawdown(10000, 0); got != 0 {
		t.Errorf("零权益应返回 0，实际 %v", got)
	}
	// 盈利时为负回撤
	if got := Drawdown(10000, 11000); got != -0.10 {
		t.Errorf("Drawdown = %v, 期望 -0.10", got)
	}
}

func TestExceedsLimitStrictlyGreater(t *testing.T) {
	if !ExceedsLimit(0.11, 0.10) {
		t.Error("0.11 > 0.10 应触发告警")
	}
	// 相等不触发
	if ExceedsLimit(0.10, 0.10) {
		t.Error("等于阈值不应触发告警")
	}
	if ExceedsLimit(0.09, 0.10) {
		t.Error("低于阈值不应触发告警")
	}
}

func TestRestInterval(t *testing.T) {
	base := 1800 * time.Second

	// 波动 1.0% → ratio 2.0 → 900s
	if got := RestInterval(base, 1.0); got != 900*time.Second {
		t.Errorf("RestInterval(1800s, 1.0%%) = %v, 期望 900s", got)
	}

	// 波动 0.1% → ratio 0.2 收敛到 0.5 → 3600s
	if got := RestInterval(base, 0.1); got != 3600*time.Second {
		t.Errorf("RestInterval(1800s, 0.1%%) = %v, 期望 3600s", got)
	}

	// 无 ATR 观测 → 原样返回
	if got := RestInterval(base, 0); got != base {
		t.Errorf("RestInterval(1800s, 0) = %v, 期望 %v", got, base)
	}

	// 极端波动触发 60s 下限
	if got := RestInterval(120*time.Second, 10.0); got != 60*time.Second {
		t.Errorf("RestInterval(120s, 10.0%%) = %v, 期望 60s", got)
	}
}
