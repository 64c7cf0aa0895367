package position

import (
	"perpcore/logger"
)

// Inputs 仓位计算所需的全部输入
type Inputs struct {
	Symbol        string
	Equity        float64 // 账户总权益 (USD)
	Available     float64 // 可用余额 (USD)
	KellyFraction float64 // 决策端给出的凯利分数（已经过校验收敛）
	MaxPctLimit   float64 // 单笔最大仓位占权益比例
	Leverage      int
	Price         float64
	FaceValue     float64 // 合约面值，未知品种为 0
	MinSize       float64 // 交易所最小下单张数
}

// Size 基于半凯利计算开仓张数
//
// 返回值未做步进取整，下单前由执行层按合约精度对齐；
// 返回 0 表示本轮跳过该品种（资金不足或品种元数据缺失）
func Size(in Inputs) float64 {
	// 半凯利降低过度下注风险，仓位占比收敛到 [1%, 上限]
	safeKelly := in.KellyFraction * 0.5
	actualPct := safeKelly
	if actualPct > in.MaxPctLimit {
		actualPct = in.MaxPctLimit
	}
	if actualPct < 0.01 {
		actualPct = 0.01
	}

	if in.Price*in.FaceValue == 0 {
		return 0
	}

	leverage := float64(in.Leverage)
	minCostMargin := (in.Price * in.FaceValue * in.MinSize) / leverage

	if in.Available < minCostMargin {
		logger.Warn("💰 资金不足: %s 最小 %v张合约需 $%.2f (杠杆%dx)，但可用余额仅 $%.2f。跳过。",
			in.Symbol, in.MinSize, minCostMargin, in.Leverage, in.Available)
		return 0
	}

	marginAmount := in.Equity * actualPct
	if marginAmount > in.Available {
		// 永不押上全部可用余额
		marginAmount = in.Available * 0.95
	}

	notional := marginAmount * leverage
	contracts := notional / (in.Price * in.FaceValue)

	if contracts < in.MinSize {
		contracts = in.MinSize
	}

	// 补到最小张数后重新核算成本，仍超出可用余额则放弃
	finalCost := (contracts * in.Price * in.FaceValue) / leverage
	if finalCost > in.Available {
		return 0
	}

	return contracts
}
