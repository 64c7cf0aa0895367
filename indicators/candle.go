package indicators

// Candle K线数据
type Candle struct {
	Time   int64   // 开盘时间戳（毫秒）
	Open   float64 // 开盘价
	High   float64 // 最高价
	Low    float64 // 最低价
	Close  float64 // 收盘价
	Volume float64 // 成交量
}

// Closes 提取收盘价序列
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
