package okx

import "strconv"

// parseF 防御性解析：OKX 所有数值字段均为字符串，缺失或非法时返回 0
func parseF(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseI 防御性解析整数字符串
func parseI(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Instrument 合约信息
type Instrument struct {
	InstID   string `json:"instId"`
	InstType string `json:"instType"`
	CtVal    string `json:"ctVal"`  // 合约面值
	TickSz   string `json:"tickSz"` // 价格最小变动单位
	MinSz    string `json:"minSz"`  // 最小下单数量
	LotSz    string `json:"lotSz"`  // 数量最小变动单位
}

// FaceValue 合约面值
func (i Instrument) FaceValue() float64 { return parseF(i.CtVal) }

// TickSize 价格最小变动单位
func (i Instrument) TickSize() float64 { return parseF(i.TickSz) }

// MinSize 最小下单数量
func (i Instrument) MinSize() float64 { return parseF(i.MinSz) }

// LotSize 数量最小变动单位
func (i Instrument) LotSize() float64 { return parseF(i.LotSz) }

// BalanceDetail 币种余额详情
type BalanceDetail struct {
	Ccy     string `json:"ccy"`
	Eq      string `json:"eq"`      // 币种总权益
	AvailEq string `json:"availEq"` // 可用保证金
}

// EqF 币种总权益
func (d BalanceDetail) EqF() float64 { return parseF(d.Eq) }

// AvailEqF 可用保证金
func (d BalanceDetail) AvailEqF() float64 { return parseF(d.AvailEq) }

// Balance 账户余额
type Balance struct {
	TotalEq string          `json:"totalEq"`
	Details []BalanceDetail `json:"details"`
}

// Position 持仓信息
type Position struct {
	InstID      string `json:"instId"`
	Pos         string `json:"pos"`         // 持仓数量（张）
	Upl         string `json:"upl"`         // 未实现收益
	PosSide     string `json:"posSide"`     // 持仓方向 long/short/net
	Lever       string `json:"lever"`       // 杠杆倍数
	NotionalUsd string `json:"notionalUsd"` // 持仓名义价值（USD）
	Mgn         string `json:"mgn"`         // 保证金占用
}

// Size 持仓数量
func (p Position) Size() float64 { return parseF(p.Pos) }

// UplF 未实现收益
func (p Position) UplF() float64 { return parseF(p.Upl) }

// Leverage 杠杆倍数，缺失时按 1 处理
func (p Position) Leverage() int {
	if v := parseI(p.Lever); v > 0 {
		return int(v)
	}
	return 1
}

// NotionalF 持仓名义价值
func (p Position) NotionalF() float64 { return parseF(p.NotionalUsd) }

// MarginF 保证金占用
func (p Position) MarginF() float64 { return parseF(p.Mgn) }

// AttachAlgoOrder 附带的止盈止损委托（触发价 + 市价执行标记 "-1"）
type AttachAlgoOrder struct {
	TpTriggerPx string `json:"tpTriggerPx"`
	TpOrdPx     string `json:"tpOrdPx"`
	SlTriggerPx string `json:"slTriggerPx"`
	SlOrdPx     string `json:"slOrdPx"`
}

// OrderRequest 下单请求
type OrderRequest struct {
	InstID         string            `json:"instId"`
	TdMode         string            `json:"tdMode"`
	Side           string            `json:"side"`
	PosSide        string            `json:"posSide"`
	OrdType        string            `json:"ordType"`
	Sz             string            `json:"sz"`
	AttachAlgoOrds []AttachAlgoOrder `json:"attachAlgoOrds,omitempty"`
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

// Bill 账单流水记录
type Bill struct {
	InstID string `json:"instId"`
	Pnl    string `json:"pnl"`
	Fee    string `json:"fee"`
	Ts     string `json:"ts"`
	Type   string `json:"type"`
	OrdID  string `json:"ordId"`
}

// PnlF 平仓收益
func (b Bill) PnlF() float64 { return parseF(b.Pnl) }

// FeeF 手续费（OKX 返回负值）
func (b Bill) FeeF() float64 { return parseF(b.Fee) }

// TsI 账单时间戳（毫秒）
func (b Bill) TsI() int64 { return parseI(b.Ts) }

// Kline K线数据
type Kline struct {
	Ts  string `json:"ts"`
	O   string `json:"o"`
	H   string `json:"h"`
	L   string `json:"l"`
	C   string `json:"c"`
	Vol string `json:"vol"`
}

// OpenTime K线开始时间戳（毫秒）
func (k Kline) OpenTime() int64 { return parseI(k.Ts) }

// ClosePrice 收盘价
func (k Kline) ClosePrice() float64 { return parseF(k.C) }

// HighPrice 最高价
func (k Kline) HighPrice() float64 { return parseF(k.H) }

// LowPrice 最低价
func (k Kline) LowPrice() float64 { return parseF(k.L) }

// FundingRate 资金费率
type FundingRate struct {
	InstID      string `json:"instId"`
	FundingRate string `json:"fundingRate"`
	FundingTime string `json:"fundingTime"`
}

// RateF 当前资金费率
func (f FundingRate) RateF() float64 { return parseF(f.FundingRate) }

// OpenInterest 持仓量
type OpenInterest struct {
	InstID string `json:"instId"`
	Oi     string `json:"oi"`
}

// OiF 持仓量
func (o OpenInterest) OiF() float64 { return parseF(o.Oi) }

// Ticker 行情数据
type Ticker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"` // 最新成交价
}

// LastPrice 最新成交价
func (t Ticker) LastPrice() float64 { return parseF(t.Last) }
