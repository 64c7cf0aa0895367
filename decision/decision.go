package decision

import (
	"perpcore/logger"
)

// Action 交易动作
type Action string

const (
	ActionBuy        Action = "BUY"
	ActionSell       Action = "SELL"
	ActionCloseLong  Action = "CLOSE_LONG"
	ActionCloseShort Action = "CLOSE_SHORT"
	ActionHold       Action = "HOLD"
)

// ParseAction 解析外部动作标签，无法识别时回退为 HOLD
func ParseAction(s string) Action {
	switch s {
	case "BUY", "OPEN_LONG":
		return ActionBuy
	case "SELL", "OPEN_SHORT":
		return ActionSell
	case "CLOSE_LONG":
		return ActionCloseLong
	case "CLOSE_SHORT":
		return ActionCloseShort
	default:
		return ActionHold
	}
}

// Name 人类可读的动作名
func (a Action) Name() string {
	switch a {
	case ActionBuy:
		return "OPEN LONG"
	case ActionSell:
		return "OPEN SHORT"
	case ActionCloseLong:
		return "CLOSE LONG"
	case ActionCloseShort:
		return "CLOSE SHORT"
	default:
		return "HOLD"
	}
}

// IsOpen 是否为开仓动作
func (a Action) IsOpen() bool {
	return a == ActionBuy || a == ActionSell
}

// Decision 外部决策端给出的交易建议
// 所有数值字段视为不可信输入，使用前必须经过 Normalize 校验收敛
type Decision struct {
	Action          Action
	Reason          string
	TPPct           float64 // 止盈比例（小数，如 0.04 表示 4%）
	SLPct           float64 // 止损比例
	Leverage        int
	WinRate         float64
	PayoffRatio     float64
	KellyFraction   float64
	StrategyVersion string
}

// Normalize 对决策各字段做校验与收敛，返回修正后的副本
//
// 规则：
//  1. 止盈/止损大于 1 视为误写成百分数，除以 100
//  2. 开仓动作的止盈低于 0.5% 时兜底为 0.8%，防止触发价过近被拒单
//  3. 杠杆收敛到 [1, maxLeverage]
//  4. 胜率超过 0.75 则压到 0.75，并用收敛后的胜率重算凯利分数
//  5. 凯利分数非正的开仓动作强制改为 HOLD
func (d Decision) Normalize(maxLeverage int) Decision {
	out := d

	if out.TPPct > 1.0 {
		out.TPPct /= 100.0
	}
	if out.SLPct > 1.0 {
		out.SLPct /= 100.0
	}
	if out.Action.IsOpen() && out.TPPct < 0.005 {
		out.TPPct = 0.008
	}

	if out.Leverage > maxLeverage {
		out.Leverage = maxLeverage
	}
	if out.Leverage < 1 {
		out.Leverage = 1
	}

	// 过度自信的胜率会放大仓位，压到上限后必须重算凯利
	if out.WinRate > 0.75 {
		logger.Warn("⚠️ 胜率 %.2f 超出上限，收敛至 0.75 并重算凯利分数", out.WinRate)
		out.WinRate = 0.75
		out.KellyFraction = kelly(out.WinRate, out.PayoffRatio)
	}

	if out.KellyFraction <= 0 && out.Action.IsOpen() {
		logger.Warn("⚠️ 凯利分数非正 (%.2f)，强制 HOLD (胜率=%.2f 赔率=%.2f)",
			out.KellyFraction, out.WinRate, out.PayoffRatio)
		out.Action = ActionHold
		out.KellyFraction = 0
	}
	if out.KellyFraction < 0 {
		out.KellyFraction = 0
	}

	return out
}

// kelly 按胜率与赔率计算凯利分数，赔率非正时返回 0
func kelly(winRate, payoffRatio float64) float64 {
	if payoffRatio <= 0 {
		return 0
	}
	return winRate - (1.0-winRate)/payoffRatio
}
