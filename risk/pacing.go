package risk

import "time"

// 波动率基准: ATR 占价格 0.5% 视为正常行情
const normalATRPct = 0.5

// 轮询下限，防止高波动时打爆接口
const minRest = 60 * time.Second

// RestInterval 按观测到的最大波动率调整下一轮休眠时长
//
// ratio = maxATRPct / 0.5，休眠 = base / max(ratio, 0.5)，下限 60 秒。
// 波动翻倍则休眠减半，波动低迷最多把休眠拉长到 2 倍
func RestInterval(base time.Duration, maxATRPct float64) time.Duration {
	if maxATRPct <= 0 {
		return base
	}

	ratio := maxATRPct / normalATRPct
	if ratio < 0.5 {
		ratio = 0.5
	}

	adjusted := time.Duration(base.Seconds() / ratio * float64(time.Second))
	if adjusted < minRest {
		adjusted = minRest
	}
	return adjusted
}
