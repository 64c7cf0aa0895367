package indicators

// 趋势判定结果
const (
	TrendBullish = "Bullish"
	TrendBearish = "Bearish"
	TrendNeutral = "Neutral"
)

// Summary 一组行情数据的技术指标汇总
type Summary struct {
	RSI     float64 `json:"rsi"`
	ATR     float64 `json:"atr"`
	EMAFast float64 `json:"ema_fast"`
	EMASlow float64 `json:"ema_slow"`
	Trend   string  `json:"trend_signal"`
}

// Analyze 基于 K 线（按时间先后排列）计算指标汇总
func Analyze(candles []Candle, rsiPeriod, atrPeriod, emaFast, emaSlow int) Summary {
	closes := Closes(candles)

	s := Summary{
		RSI:     RSI(closes, rsiPeriod),
		ATR:     ATR(candles, atrPeriod),
		EMAFast: EMA(closes, emaFast),
		EMASlow: EMA(closes, emaSlow),
	}

	switch {
	case s.EMAFast > s.EMASlow:
		s.Trend = TrendBullish
	case s.EMAFast < s.EMASlow:
		s.Trend = TrendBearish
	default:
		s.Trend = TrendNeutral
	}
	return s
}
