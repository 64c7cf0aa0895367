package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"perpcore/exchange/okx"
	"perpcore/instrument"
	"perpcore/logger"
	"perpcore/metrics"
)

// api 执行层依赖的交易接口
type api interface {
	GetBalance(ctx context.Context, ccy string) ([]okx.Balance, error)
	GetPositions(ctx context.Context) ([]okx.Position, error)
	SetLeverage(ctx context.Context, instID string, lever int, mgnMode string) error
	PlaceOrder(ctx context.Context, order *okx.OrderRequest) ([]okx.PlaceOrderResult, error)
	GetBills(ctx context.Context, instType, billType string) ([]okx.Bill, error)
}

// BalanceSummary 账户资金概览
type BalanceSummary struct {
	TotalEquity float64
	Available   float64
}

// PositionSummary 持仓概览
type PositionSummary struct {
	Symbol      string
	Size        float64
	Upl         float64
	Side        string
	Leverage    int
	NotionalUSD float64
	MarginUSD   float64
}

// PnLRecord 单笔已实现盈亏账单
type PnLRecord struct {
	Symbol  string
	Pnl     float64
	Fee     float64
	Ts      int64
	Type    string
	OrderID string
}

// OrderResult 下单结果
type OrderResult struct {
	OrderID string
}

// OrderParams 一次下单的完整参数
type OrderParams struct {
	Symbol   string
	Side     string // buy / sell
	PosSide  string // long / short
	Size     float64
	Price    float64 // 参考价，用于计算止盈止损触发价
	TPPct    float64
	SLPct    float64
	Leverage int // 0 表示不调整杠杆
}

// TradeExecutor 订单执行器
// 封装下单、持仓、资金查询，所有下单动作经过限速器
type TradeExecutor struct {
	api         api
	instruments *instrument.Cache
	limiter     *rate.Limiter
	dryRun      bool
}

func NewTradeExecutor(api api, instruments *instrument.Cache, dryRun bool) *TradeExecutor {
	return &TradeExecutor{
		api:         api,
		instruments: instruments,
		// OKX 下单接口限频，留足余量
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		dryRun:  dryRun,
	}
}

// FetchAccountSummary 获取 USDT 账户的总权益与可用余额
func (e *TradeExecutor) FetchAccountSummary(ctx context.Context) (*BalanceSummary, error) {
	balances, err := e.api.GetBalance(ctx, "USDT")
	if err != nil {
		return nil, fmt.Errorf("获取账户余额失败: %w", err)
	}
	if len(balances) == 0 || len(balances[0].Details) == 0 {
		return nil, fmt.Errorf("账户余额响应为空")
	}

	detail := balances[0].Details[0]
	return &BalanceSummary{
		TotalEquity: detail.EqF(),
		Available:   detail.AvailEqF(),
	}, nil
}

// FetchPositions 获取全部非零持仓
func (e *TradeExecutor) FetchPositions(ctx context.Context) ([]PositionSummary, error) {
	positions, err := e.api.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("获取持仓失败: %w", err)
	}

	list := make([]PositionSummary, 0, len(positions))
	for _, p := range positions {
		if p.Size() == 0 {
			continue
		}
		list = append(list, PositionSummary{
			Symbol:      p.InstID,
			Size:        p.Size(),
			Upl:         p.UplF(),
			Side:        p.PosSide,
			Leverage:    p.Leverage(),
			NotionalUSD: p.NotionalF(),
			MarginUSD:   p.MarginF(),
		})
	}
	return list, nil
}

// ExecuteOrder 提交市价单
//
// 流程：可选杠杆调整（失败不阻断）→ 数量按步进对齐（为零则立即失败，不发请求）
// → 止盈止损挂单价计算 → dry-run 直接返回 → 真实下单
func (e *TradeExecutor) ExecuteOrder(ctx context.Context, p *OrderParams) (*OrderResult, error) {
	if p.Leverage > 0 {
		if err := e.api.SetLeverage(ctx, p.Symbol, p.Leverage, "cross"); err != nil {
			// 杠杆设置失败不致命，沿用账户当前配置继续下单
			logger.Warn("⚠️ 设置 %s 杠杆 %dx 失败（继续下单）: %v", p.Symbol, p.Leverage, err)
		}
	}

	szStr := e.instruments.FormatSize(p.Symbol, p.Size)
	if parsed, _ := strconv.ParseFloat(szStr, 64); parsed == 0 {
		metrics.RecordOrderFailure(p.Symbol, p.Side, "size_too_small")
		return nil, fmt.Errorf("下单数量 %v 对齐步进后为零 (sz=%s)", p.Size, szStr)
	}

	order := &okx.OrderRequest{
		InstID:  p.Symbol,
		TdMode:  "cross",
		Side:    p.Side,
		PosSide: p.PosSide,
		OrdType: "market",
		Sz:      szStr,
	}

	if p.TPPct > 0 && p.SLPct > 0 {
		var tpPrice, slPrice float64
		if p.PosSide == "long" {
			tpPrice = p.Price * (1.0 + p.TPPct)
			slPrice = p.Price * (1.0 - p.SLPct)
		} else {
			tpPrice = p.Price * (1.0 - p.TPPct)
			slPrice = p.Price * (1.0 + p.SLPct)
		}

		if tpPrice > 0 && slPrice > 0 {
			tpStr := e.instruments.FormatPrice(p.Symbol, tpPrice)
			slStr := e.instruments.FormatPrice(p.Symbol, slPrice)
			logger.Info("🛡️ 附加止盈止损: TP %s (%.2f%%) / SL %s (%.2f%%)", tpStr, p.TPPct*100, slStr, p.SLPct*100)
			order.AttachAlgoOrds = []okx.AttachAlgoOrder{{
				TpTriggerPx: tpStr,
				TpOrdPx:     "-1",
				SlTriggerPx: slStr,
				SlOrdPx:     "-1",
			}}
		} else {
			logger.Warn("⚠️ 止盈止损价无效，裸单继续: TP=%v SL=%v", tpPrice, slPrice)
		}
	}

	if e.dryRun {
		logger.Info("🧪 [DRY RUN] 订单: %s %s %s sz=%s", p.Side, p.PosSide, p.Symbol, szStr)
		metrics.RecordOrder(p.Symbol, p.Side, "dry_run")
		return &OrderResult{OrderID: "dry-run"}, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	logger.Info("🚀 提交 %s 市价单 (sz: %s)...", p.Symbol, szStr)
	start := time.Now()

	results, err := e.api.PlaceOrder(ctx, order)
	if err != nil {
		metrics.RecordOrderFailure(p.Symbol, p.Side, "submit_error")
		return nil, fmt.Errorf("%s 下单失败: %w", p.Symbol, err)
	}
	if len(results) == 0 {
		metrics.RecordOrderFailure(p.Symbol, p.Side, "empty_response")
		return nil, fmt.Errorf("%s 下单响应为空", p.Symbol)
	}
	if results[0].SCode != "" && results[0].SCode != "0" {
		metrics.RecordOrderFailure(p.Symbol, p.Side, "rejected")
		return nil, fmt.Errorf("%s 订单被拒: code=%s msg=%s", p.Symbol, results[0].SCode, results[0].SMsg)
	}

	ordID := results[0].OrdID
	logger.Info("✅ 下单成功: ID %s", ordID)
	metrics.RecordOrderSuccess(p.Symbol, p.Side, time.Since(start))
	return &OrderResult{OrderID: ordID}, nil
}

// FetchRecentPnL 拉取最近的已实现盈亏账单（平仓类型）
func (e *TradeExecutor) FetchRecentPnL(ctx context.Context) ([]PnLRecord, error) {
	bills, err := e.api.GetBills(ctx, "SWAP", "2")
	if err != nil {
		return nil, fmt.Errorf("获取账单失败: %w", err)
	}

	records := make([]PnLRecord, 0, len(bills))
	for _, b := range bills {
		records = append(records, PnLRecord{
			Symbol:  b.InstID,
			Pnl:     b.PnlF(),
			Fee:     b.FeeF(),
			Ts:      b.TsI(),
			Type:    b.Type,
			OrderID: b.OrdID,
		})
	}
	return records, nil
}
