package storage

import (
	"testing"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogTradeAndQuery(t *testing.T) {
	s := newTestStorage(t)

	if err := s.LogTrade("BTC-USDT-SWAP", "buy", `{"price":65000}`, "ord-1", "v1", 1500); err != nil {
		t.Fatalf("LogTrade 失败: %v", err)
	}
	if err := s.LogTrade("ETH-USDT-SWAP", "sell", `{"price":3200}`, "ord-2", "v1", 800); err != nil {
		t.Fatalf("LogTrade 失败: %v", err)
	}

	logs, err := s.RecentTrades(10)
	if err != nil {
		t.Fatalf("RecentTrades 失败: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("记录数 = %d, 期望 2", len(logs))
	}

	// 倒序: 最新在前
	latest := logs[0]
	if latest.Symbol != "ETH-USDT-SWAP" || latest.Direction != "sell" || latest.OrderID != "ord-2" {
		t.Errorf("最新记录异常: %+v", latest)
	}
	if latest.InitialMargin != 800 {
		t.Errorf("InitialMargin = %v", latest.InitialMargin)
	}
	if latest.RealizedPnL.Valid {
		t.Error("未平仓记录的 realized_pnl 应为 NULL")
	}
}

func TestUpdateRealizedPnL(t *testing.T) {
	s := newTestStorage(t)

	if err := s.LogTrade("BTC-USDT-SWAP", "buy", "{}", "ord-1", "v1", 1500); err != nil {
		t.Fatalf("LogTrade 失败: %v", err)
	}

	rows, err := s.UpdateRealizedPnL("ord-1", 12.2)
	if err != nil {
		t.Fatalf("UpdateRealizedPnL 失败: %v", err)
	}
	if rows != 1 {
		t.Fatalf("更新行数 = %d, 期望 1", rows)
	}

	logs, _ := s.RecentTrades(1)
	if !logs[0].RealizedPnL.Valid || logs[0].RealizedPnL.Float64 != 12.2 {
		t.Errorf("回填后 realized_pnl = %+v", logs[0].RealizedPnL)
	}

	// 已回填记录不应再被覆盖
	rows, err = s.UpdateRealizedPnL("ord-1", 99.9)
	if err != nil {
		t.Fatalf("二次回填失败: %v", err)
	}
	if rows != 0 {
		t.Errorf("已回填记录不应更新: rows=%d", rows)
	}
	logs, _ = s.RecentTrades(1)
	if logs[0].RealizedPnL.Float64 != 12.2 {
		t.Errorf("已回填值被覆盖: %v", logs[0].RealizedPnL.Float64)
	}
}

func TestUpdateRealizedPnLEmptyOrderID(t *testing.T) {
	s := newTestStorage(t)
	rows, err := s.UpdateRealizedPnL("", 10)
	if err != nil {
		t.Fatalf("空订单号不应报错: %v", err)
	}
	if rows != 0 {
		t.Errorf("空订单号不应更新: rows=%d", rows)
	}
}

func TestUpdateRealizedPnLUnknownOrder(t *testing.T) {
	s := newTestStorage(t)
	rows, err := s.UpdateRealizedPnL("missing", 10)
	if err != nil {
		t.Fatalf("未知订单不应报错: %v", err)
	}
	if rows != 0 {
		t.Errorf("未知订单更新行数 = %d", rows)
	}
}

func TestRecentTradesDefaultLimit(t *testing.T) {
	s := newTestStorage(t)
	logs, err := s.RecentTrades(0)
	if err != nil {
		t.Fatalf("RecentTrades 失败: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("空表应返回空切片: %d", len(logs))
	}
}
