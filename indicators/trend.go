package indicators

// ========== 趋势指标 ==========

// SMA 简单移动平均（前 period 个值）
func SMA(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA 指数移动平均的最新值
// 用前 period 个值的 SMA 作为种子，防止早期数据失真
func EMA(values []float64, period int) float64 {
	if len(values) < period {
		if len(values) == 0 {
			return 0
		}
		return values[len(values)-1]
	}

	k := 2.0 / (float64(period) + 1.0)
	ema := SMA(values, period)

	for _, price := range values[period:] {
		ema = price*k + ema*(1.0-k)
	}
	return ema
}
