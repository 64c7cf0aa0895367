package executor

import (
	"context"
	"errors"
	"testing"

	"perpcore/exchange/okx"
	"perpcore/instrument"
)

// mockAPI 可编程的交易接口替身
type mockAPI struct {
	balances     []okx.Balance
	balanceErr   error
	positions    []okx.Position
	positionsErr error
	leverageErr  error
	leverageSet  []int
	orders       []*okx.OrderRequest
	orderResults []okx.PlaceOrderResult
	orderErr     error
	bills        []okx.Bill
	billsErr     error
}

func (m *mockAPI) GetBalance(ctx context.Context, ccy string) ([]okx.Balance, error) {
	return m.balances, m.balanceErr
}

func (m *mockAPI) GetPositions(ctx context.Context) ([]okx.Position, error) {
	return m.positions, m.positionsErr
}

func (m *mockAPI) SetLeverage(ctx context.Context, instID string, lever int, mgnMode string) error {
	m.leverageSet = append(m.leverageSet, lever)
	return m.leverageErr
}

func (m *mockAPI) PlaceOrder(ctx context.Context, order *okx.OrderRequest) ([]okx.PlaceOrderResult, error) {
	m.orders = append(m.orders, order)
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	if m.orderResults == nil {
		return []okx.PlaceOrderResult{{OrdID: "123", SCode: "0"}}, nil
	}
	return m.orderResults, nil
}

func (m *mockAPI) GetBills(ctx context.Context, instType, billType string) ([]okx.Bill, error) {
	return m.bills, m.billsErr
}

// instrumentSource 固定返回一个 BTC 合约
type instrumentSource struct{}

func (instrumentSource) GetInstruments(ctx context.Context, instType string) ([]okx.Instrument, error) {
	return []okx.Instrument{
		{InstID: "BTC-USDT-SWAP", InstType: "SWAP", CtVal: "0.01", TickSz: "0.1", MinSz: "0.1", LotSz: "0.1"},
	}, nil
}

func newTestExecutor(t *testing.T, api *mockAPI, dryRun bool) *TradeExecutor {
	t.Helper()
	cache := instrument.NewCache(instrumentSource{})
	if err := cache.Refresh(context.Background()); err != nil {
		t.Fatalf("初始化合约缓存失败: %v", err)
	}
	return NewTradeExecutor(api, cache, dryRun)
}

func TestFetchAccountSummary(t *testing.T) {
	api := &mockAPI{balances: []okx.Balance{{
		TotalEq: "10000",
		Details: []okx.BalanceDetail{{Ccy: "USDT", Eq: "10000", AvailEq: "9000"}},
	}}}
	exec := newTestExecutor(t, api, false)

	summary, err := exec.FetchAccountSummary(context.Background())
	if err != nil {
		t.Fatalf("FetchAccountSummary 失败: %v", err)
	}
	if summary.TotalEquity != 10000 || summary.Available != 9000 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestFetchAccountSummaryEmpty(t *testing.T) {
	exec := newTestExecutor(t, &mockAPI{}, false)
	if _, err := exec.FetchAccountSummary(context.Background()); err == nil {
		t.Fatal("空响应应返回错误")
	}
}

func TestFetchPositionsFiltersZeroSize(t *testing.T) {
	api := &mockAPI{positions: []okx.Position{
		{InstID: "BTC-USDT-SWAP", Pos: "10", Upl: "5.5", PosSide: "long", Lever: "5", NotionalUsd: "1000", Mgn: "200"},
		{InstID: "ETH-USDT-SWAP", Pos: "0", PosSide: "long"},
	}}
	exec := newTestExecutor(t, api, false)

	positions, err := exec.FetchPositions(context.Background())
	if err != nil {
		t.Fatalf("FetchPositions 失败: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("零持仓应被过滤: %+v", positions)
	}
	p := positions[0]
	if p.Symbol != "BTC-USDT-SWAP" || p.Size != 10 || p.Leverage != 5 {
		t.Errorf("持仓字段异常: %+v", p)
	}
}

func TestExecuteOrderFull(t *testing.T) {
	api := &mockAPI{}
	exec := newTestExecutor(t, api, false)

	result, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:   "BTC-USDT-SWAP",
		Side:     "buy",
		PosSide:  "long",
		Size:     1.25,
		Price:    65000,
		TPPct:    0.04,
		SLPct:    0.02,
		Leverage: 5,
	})
	if err != nil {
		t.Fatalf("ExecuteOrder 失败: %v", err)
	}
	if result.OrderID != "123" {
		t.Errorf("OrderID = %s", result.OrderID)
	}
	if len(api.leverageSet) != 1 || api.leverageSet[0] != 5 {
		t.Errorf("应先设置杠杆: %v", api.leverageSet)
	}
	if len(api.orders) != 1 {
		t.Fatalf("应提交一笔订单: %d", len(api.orders))
	}

	order := api.orders[0]
	if order.Sz != "1.2" {
		t.Errorf("数量应按步进 0.1 对齐: %s", order.Sz)
	}
	if order.OrdType != "market" || order.TdMode != "cross" {
		t.Errorf("订单参数异常: %+v", order)
	}
	if len(order.AttachAlgoOrds) != 1 {
		t.Fatalf("应附带止盈止损: %+v", order)
	}
	algo := order.AttachAlgoOrds[0]
	// 多头: TP = 65000*1.04 = 67600, SL = 65000*0.98 = 63700
	if algo.TpTriggerPx != "67600.0" {
		t.Errorf("TpTriggerPx = %s", algo.TpTriggerPx)
	}
	if algo.SlTriggerPx != "63700.0" {
		t.Errorf("SlTriggerPx = %s", algo.SlTriggerPx)
	}
	if algo.TpOrdPx != "-1" || algo.SlOrdPx != "-1" {
		t.Errorf("执行价哨兵应为 -1: %+v", algo)
	}
}

func TestExecuteOrderShortBracketInverts(t *testing.T) {
	api := &mockAPI{}
	exec := newTestExecutor(t, api, false)

	_, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:  "BTC-USDT-SWAP",
		Side:    "sell",
		PosSide: "short",
		Size:    1,
		Price:   1000,
		TPPct:   0.10,
		SLPct:   0.05,
	})
	if err != nil {
		t.Fatalf("ExecuteOrder 失败: %v", err)
	}
	algo := api.orders[0].AttachAlgoOrds[0]
	// 空头: TP = 1000*0.90 = 900, SL = 1000*1.05 = 1050
	if algo.TpTriggerPx != "900.0" {
		t.Errorf("TpTriggerPx = %s", algo.TpTriggerPx)
	}
	if algo.SlTriggerPx != "1050.0" {
		t.Errorf("SlTriggerPx = %s", algo.SlTriggerPx)
	}
}

func TestExecuteOrderZeroSizeFailsFast(t *testing.T) {
	api := &mockAPI{}
	exec := newTestExecutor(t, api, false)

	_, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:  "BTC-USDT-SWAP",
		Side:    "buy",
		PosSide: "long",
		Size:    0.04, // 低于步进 0.1，对齐后为 0
		Price:   65000,
	})
	if err == nil {
		t.Fatal("对齐后为零的数量应立即失败")
	}
	if len(api.orders) != 0 {
		t.Errorf("不应发出网络请求: %d", len(api.orders))
	}
}

func TestExecuteOrderLeverageFailureNotFatal(t *testing.T) {
	api := &mockAPI{leverageErr: errors.New("leverage rejected")}
	exec := newTestExecutor(t, api, false)

	_, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:   "BTC-USDT-SWAP",
		Side:     "buy",
		PosSide:  "long",
		Size:     1,
		Price:    65000,
		Leverage: 10,
	})
	if err != nil {
		t.Fatalf("杠杆设置失败不应阻断下单: %v", err)
	}
	if len(api.orders) != 1 {
		t.Errorf("订单仍应提交: %d", len(api.orders))
	}
}

func TestExecuteOrderDryRun(t *testing.T) {
	api := &mockAPI{}
	exec := newTestExecutor(t, api, true)

	result, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:  "BTC-USDT-SWAP",
		Side:    "buy",
		PosSide: "long",
		Size:    1,
		Price:   65000,
	})
	if err != nil {
		t.Fatalf("dry-run 不应失败: %v", err)
	}
	if result.OrderID != "dry-run" {
		t.Errorf("OrderID = %s", result.OrderID)
	}
	if len(api.orders) != 0 {
		t.Errorf("dry-run 不应真实下单: %d", len(api.orders))
	}
}

func TestExecuteOrderNoBracketWithoutBothPcts(t *testing.T) {
	api := &mockAPI{}
	exec := newTestExecutor(t, api, false)

	_, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:  "BTC-USDT-SWAP",
		Side:    "sell",
		PosSide: "long", // 平多
		Size:    1,
		Price:   65000,
		TPPct:   0.04, // 只有 TP 没有 SL → 不附带
	})
	if err != nil {
		t.Fatalf("ExecuteOrder 失败: %v", err)
	}
	if len(api.orders[0].AttachAlgoOrds) != 0 {
		t.Errorf("只有单边止盈不应附带条件单: %+v", api.orders[0].AttachAlgoOrds)
	}
}

func TestExecuteOrderRejected(t *testing.T) {
	api := &mockAPI{orderResults: []okx.PlaceOrderResult{{OrdID: "", SCode: "51000", SMsg: "param error"}}}
	exec := newTestExecutor(t, api, false)

	_, err := exec.ExecuteOrder(context.Background(), &OrderParams{
		Symbol:  "BTC-USDT-SWAP",
		Side:    "buy",
		PosSide: "long",
		Size:    1,
		Price:   65000,
	})
	if err == nil {
		t.Fatal("被拒订单应返回错误")
	}
}

func TestFetchRecentPnL(t *testing.T) {
	api := &mockAPI{bills: []okx.Bill{
		{InstID: "BTC-USDT-SWAP", Pnl: "12.5", Fee: "-0.3", Ts: "1700000000000", Type: "2", OrdID: "abc"},
	}}
	exec := newTestExecutor(t, api, false)

	records, err := exec.FetchRecentPnL(context.Background())
	if err != nil {
		t.Fatalf("FetchRecentPnL 失败: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	r := records[0]
	if r.Pnl != 12.5 || r.Fee != -0.3 || r.OrderID != "abc" || r.Ts != 1700000000000 {
		t.Errorf("账单字段异常: %+v", r)
	}
}
