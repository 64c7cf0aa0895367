package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"perpcore/logger"
)

// TradeLog 一笔已执行交易的落库记录
type TradeLog struct {
	ID              int64
	Symbol          string
	Direction       string
	ContextSnapshot string // 下单时刻的市场上下文 JSON
	OrderID         string
	StrategyVersion string
	InitialMargin   float64
	RealizedPnL     sql.NullFloat64 // 平仓前为 NULL，由账单同步回填
	CreatedAt       time.Time
}

// SQLiteStorage 交易日志存储
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 打开（或创建）数据库并初始化表结构
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	tradeLogsSQL := `
	CREATE TABLE IF NOT EXISTS trade_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		direction TEXT NOT NULL,
		context_snapshot TEXT,
		order_id TEXT,
		strategy_version TEXT,
		initial_margin DECIMAL(20,8),
		realized_pnl DECIMAL(20,8),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`

	indexSQL := `CREATE INDEX IF NOT EXISTS idx_trade_logs_order_id ON trade_logs(order_id);`

	for _, stmt := range []string{tradeLogsSQL, indexSQL} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LogTrade 记录一笔已执行的交易
func (s *SQLiteStorage) LogTrade(symbol, direction, contextSnapshot, orderID, strategyVersion string, initialMargin float64) error {
	_, err := s.db.Exec(
		`INSERT INTO trade_logs (symbol, direction, context_snapshot, order_id, strategy_version, initial_margin)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		symbol, direction, contextSnapshot, orderID, strategyVersion, initialMargin,
	)
	if err != nil {
		return fmt.Errorf("写入交易日志失败: %w", err)
	}
	return nil
}

// UpdateRealizedPnL 按订单号回填净收益（收益+手续费）
// 只更新尚未回填的记录，返回实际更新行数
func (s *SQLiteStorage) UpdateRealizedPnL(orderID string, netPnL float64) (int64, error) {
	if orderID == "" {
		return 0, nil
	}

	result, err := s.db.Exec(
		`UPDATE trade_logs SET realized_pnl = ? WHERE order_id = ? AND realized_pnl IS NULL`,
		netPnL, orderID,
	)
	if err != nil {
		return 0, fmt.Errorf("回填已实现盈亏失败: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		logger.Info("💰 订单 %s 盈亏已回填: $%.2f", orderID, netPnL)
	}
	return rows, nil
}

// RecentTrades 按时间倒序返回最近的交易记录
func (s *SQLiteStorage) RecentTrades(limit int) ([]*TradeLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, symbol, direction, context_snapshot, order_id, strategy_version, initial_margin, realized_pnl, created_at
		 FROM trade_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("查询交易日志失败: %w", err)
	}
	defer rows.Close()

	var logs []*TradeLog
	for rows.Next() {
		var t TradeLog
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Direction, &t.ContextSnapshot, &t.OrderID,
			&t.StrategyVersion, &t.InitialMargin, &t.RealizedPnL, &t.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &t)
	}
	return logs, rows.Err()
}

// Close 关闭数据库连接
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
