package indicators

import "math"

// ========== 波动率指标 ==========

// TrueRange 单根K线的真实波幅
func TrueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if v := math.Abs(high - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// ATR 平均真实波幅：取 period 根真实波幅的简单平均
// 数据不足时返回 0
func ATR(candles []Candle, period int) float64 {
	if len(candles) < period+1 {
		return 0
	}

	trSum := 0.0
	for i := 1; i <= period; i++ {
		trSum += TrueRange(candles[i].High, candles[i].Low, candles[i-1].Close)
	}
	return trSum / float64(period)
}
