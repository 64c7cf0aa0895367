package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestRSIInsufficientData(t *testing.T) {
	prices := []float64{100, 101, 102}
	if got := RSI(prices, 14); got != 50.0 {
		t.Errorf("数据不足时 RSI 应返回 50，实际 %v", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	if got := RSI(prices, 14); got != 100.0 {
		t.Errorf("单边上涨 RSI 应为 100，实际 %v", got)
	}
}

func TestRSIAllLosses(t *testing.T) {
	prices := make([]float64, 20)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}
	got := RSI(prices, 14)
	if !almostEqual(got, 0, 1e-9) {
		t.Errorf("单边下跌 RSI 应为 0，实际 %v", got)
	}
}

func TestRSIRange(t *testing.T) {
	prices := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.0, 45.9, 46.2, 45.6, 46.3, 46.3, 46.0, 46.4, 46.2, 45.6}
	got := RSI(prices, 14)
	if got <= 0 || got >= 100 {
		t.Errorf("RSI 超出有效区间: %v", got)
	}
	// 整体上行，RSI 应偏多头区域
	if got < 50 {
		t.Errorf("上行序列的 RSI 不应低于 50: %v", got)
	}
}

func TestTrueRange(t *testing.T) {
	cases := []struct {
		high, low, prevClose, want float64
	}{
		{105, 100, 102, 5},  // 当根振幅最大
		{105, 100, 110, 10}, // 向上跳空
		{105, 100, 95, 10},  // 向下跳空
	}
	for _, c := range cases {
		if got := TrueRange(c.high, c.low, c.prevClose); !almostEqual(got, c.want, 1e-9) {
			t.Errorf("TrueRange(%v, %v, %v) = %v, 期望 %v", c.high, c.low, c.prevClose, got, c.want)
		}
	}
}

func TestATRInsufficientData(t *testing.T) {
	candles := []Candle{
		{High: 105, Low: 100, Close: 102},
		{High: 106, Low: 101, Close: 103},
	}
	if got := ATR(candles, 14); got != 0 {
		t.Errorf("数据不足时 ATR 应返回 0，实际 %v", got)
	}
}

func TestATRConstantRange(t *testing.T) {
	// 每根K线振幅恒为 2 且无跳空，ATR 应等于 2
	candles := make([]Candle, 15)
	for i := range candles {
		candles[i] = Candle{High: 102, Low: 100, Close: 101}
	}
	got := ATR(candles, 14)
	if !almostEqual(got, 2.0, 1e-9) {
		t.Errorf("恒定振幅 ATR = %v, 期望 2.0", got)
	}
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := SMA(values, 5); !almostEqual(got, 3.0, 1e-9) {
		t.Errorf("SMA = %v, 期望 3.0", got)
	}
	if got := SMA(values, 10); got != 0 {
		t.Errorf("数据不足时 SMA 应返回 0，实际 %v", got)
	}
}

func TestEMAConstantSeries(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 50.0
	}
	if got := EMA(values, 10); !almostEqual(got, 50.0, 1e-9) {
		t.Errorf("常数序列 EMA = %v, 期望 50.0", got)
	}
}

func TestEMAFollowsTrend(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 100 + float64(i)
	}
	fast := EMA(values, 5)
	slow := EMA(values, 20)
	if fast <= slow {
		t.Errorf("上行序列快线应高于慢线: fast=%v slow=%v", fast, slow)
	}
	last := values[len(values)-1]
	if fast >= last {
		t.Errorf("EMA 不应超过最新价: %v >= %v", fast, last)
	}
}

func TestEMAShortSeries(t *testing.T) {
	values := []float64{10, 11}
	if got := EMA(values, 5); got != 11 {
		t.Errorf("短序列 EMA 应退化为最新值，实际 %v", got)
	}
	if got := EMA(nil, 5); got != 0 {
		t.Errorf("空序列 EMA 应为 0，实际 %v", got)
	}
}

func TestAnalyzeTrend(t *testing.T) {
	// 持续上涨的行情应判定为多头
	candles := make([]Candle, 40)
	for i := range candles {
		p := 100 + float64(i)
		candles[i] = Candle{High: p + 1, Low: p - 1, Close: p, Open: p - 0.5}
	}
	s := Analyze(candles, 14, 14, 5, 20)
	if s.Trend != TrendBullish {
		t.Errorf("上行行情应为 %s，实际 %s", TrendBullish, s.Trend)
	}
	if s.RSI < 50 {
		t.Errorf("上行行情 RSI 不应低于 50: %v", s.RSI)
	}
	if s.ATR <= 0 {
		t.Errorf("ATR 应大于 0: %v", s.ATR)
	}

	// 持续下跌应判定为空头
	for i := range candles {
		p := 200 - float64(i)
		candles[i] = Candle{High: p + 1, Low: p - 1, Close: p, Open: p + 0.5}
	}
	s = Analyze(candles, 14, 14, 5, 20)
	if s.Trend != TrendBearish {
		t.Errorf("下行行情应为 %s，实际 %s", TrendBearish, s.Trend)
	}
}
