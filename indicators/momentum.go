package indicators

// ========== 动量指标 ==========

// RSI 相对强弱指标（Wilder 平滑）
// 数据不足时返回中性值 50
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50.0
	}

	gains := 0.0
	losses := 0.0

	// 用前 period 个涨跌幅做初始均值
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder 平滑迭代
	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		currentGain, currentLoss := 0.0, 0.0
		if change > 0 {
			currentGain = change
		} else {
			currentLoss = -change
		}

		avgGain = (avgGain*(float64(period)-1) + currentGain) / float64(period)
		avgLoss = (avgLoss*(float64(period)-1) + currentLoss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}
