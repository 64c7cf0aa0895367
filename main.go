package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"time"

	"perpcore/config"
	"perpcore/decision"
	"perpcore/exchange/okx"
	"perpcore/executor"
	"perpcore/instrument"
	"perpcore/logger"
	"perpcore/market"
	"perpcore/metrics"
	"perpcore/notify"
	"perpcore/position"
	"perpcore/risk"
	"perpcore/storage"
	"perpcore/utils"
)

// Version 版本号
var Version = "1.0.0"

// engine 汇集主循环依赖
type engine struct {
	cfg        *config.Config
	exec       *executor.TradeExecutor
	instCache  *instrument.Cache
	fetcher    *market.Fetcher
	priceCache *market.PriceCache
	maker      decision.Maker
	notifier   notify.Notifier
	store      *storage.SQLiteStorage

	initialCapital float64
	lastReportAt   time.Time
	lastPnlSyncAt  time.Time
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("加载配置失败: %v", err)
	}

	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))
	if cfg.System.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.System.Timezone); err == nil {
			logger.SetLocation(loc)
		}
	}
	defer logger.Close()

	logger.Info("🚀 PerpCore v%s 启动中...", Version)
	if cfg.Exchange.DryRun {
		logger.Warn("🧪 干跑模式已开启，所有订单仅模拟")
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Listen)
	}

	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("初始化数据库失败: %v", err)
	}
	defer store.Close()

	client := okx.NewClient(
		cfg.Exchange.APIKey,
		cfg.Exchange.SecretKey,
		cfg.Exchange.Passphrase,
		cfg.Exchange.BaseURL,
		cfg.Exchange.Simulated,
	)

	// 合约元数据启动时一次性加载，失败即退出
	instCache := instrument.NewCache(client)
	if err := instCache.Refresh(ctx); err != nil {
		logger.Fatalf("加载合约元数据失败: %v", err)
	}

	notifier := notify.NewNotifier(cfg)
	exec := executor.NewTradeExecutor(client, instCache, cfg.Exchange.DryRun)
	fetcher := market.NewFetcher(client, market.IndicatorParams{
		KlineInterval: cfg.Indicators.KlineInterval,
		KlineLimit:    cfg.Indicators.KlineLimit,
		RSIPeriod:     cfg.Indicators.RSIPeriod,
		ATRPeriod:     cfg.Indicators.ATRPeriod,
		EMAFast:       cfg.Indicators.EMAFast,
		EMASlow:       cfg.Indicators.EMASlow,
	})
	maker := decision.NewHTTPMaker(
		cfg.Decision.Endpoint,
		cfg.Decision.StrategyVersion,
		time.Duration(cfg.Decision.TimeoutSec)*time.Second,
	)

	eng := &engine{
		cfg:        cfg,
		exec:       exec,
		instCache:  instCache,
		fetcher:    fetcher,
		priceCache: market.NewPriceCache(),
		maker:      maker,
		notifier:   notifier,
		store:      store,
	}

	// 资金基准
	initialCapital, err := risk.EstablishBaseline(ctx, func(ctx context.Context) (float64, float64, error) {
		summary, err := exec.FetchAccountSummary(ctx)
		if err != nil {
			return 0, 0, err
		}
		return summary.TotalEquity, summary.Available, nil
	})
	if err != nil || initialCapital == 0 {
		msg := "🔥 严重错误: 无法获取初始资金基准!"
		logger.Error("%s (%v)", msg, err)
		notifier.SendAlert(msg)
	} else {
		eng.initialCapital = initialCapital
		positions, err := exec.FetchPositions(ctx)
		if err != nil {
			logger.Warn("⚠️ 启动时获取持仓失败: %v", err)
		}
		notifier.SendStartupReport(initialCapital, time.Now().Format("2006-01-02 15:04:05"), toReportItems(positions))
	}

	// 行情流独立运行，与主循环仅通过价格缓存交互
	stream := okx.NewTickerStream(cfg.Exchange.WsURL, cfg.Risk.AllowedSymbols, eng.priceCache.Update)
	go stream.Run(ctx)

	eng.lastReportAt = time.Now()
	eng.lastPnlSyncAt = time.Now()

	logger.Info("✅ 系统初始化完成，主循环启动")
	eng.run(ctx)
}

// run 风控主循环，进程生命周期内不退出
func (e *engine) run(ctx context.Context) {
	baseRest := time.Duration(e.cfg.Timing.CycleRestSec) * time.Second
	symbolGap := time.Duration(e.cfg.Timing.SymbolGapMs) * time.Millisecond
	reportInterval := time.Duration(e.cfg.Timing.ReportSec) * time.Second
	pnlSyncInterval := time.Duration(e.cfg.Timing.PnlSyncSec) * time.Second

	for {
		cycleStart := time.Now()
		logger.Info("==================== 📊 系统状态 ====================")

		equity, available := 0.0, 0.0
		if summary, err := e.exec.FetchAccountSummary(ctx); err != nil {
			logger.Error("获取账户余额失败: %v", err)
		} else {
			equity, available = summary.TotalEquity, summary.Available
			metrics.SetEquity(equity)
		}

		// 回撤监控仅告警，不暂停交易
		dd := risk.Drawdown(e.initialCapital, equity)
		metrics.SetDrawdown(dd)
		if risk.ExceedsLimit(dd, e.cfg.Risk.MaxDrawdownLimit) {
			alert := fmt.Sprintf("🔥 严重警告: 最大回撤触发! (%.2f%%)", dd*100)
			logger.Error("%s", alert)
			e.notifier.SendAlert(alert)
		}

		positions, err := e.exec.FetchPositions(ctx)
		if err != nil {
			logger.Error("获取持仓失败: %v", err)
			positions = nil
		}

		if time.Since(e.lastReportAt) >= reportInterval && equity > 0 && e.initialCapital > 0 {
			pnlPct := (equity - e.initialCapital) / e.initialCapital * 100
			e.notifier.SendStatusReport(equity, pnlPct, toReportItems(positions))
			e.lastReportAt = time.Now()
		}

		logger.Info("====================================================")

		maxATRPct := 0.0
		for _, symbol := range e.cfg.Risk.AllowedSymbols {
			// 单个交易对的失败不影响其他交易对
			atrPct := e.processSymbol(ctx, symbol, equity, available, positions)
			if atrPct > maxATRPct {
				maxATRPct = atrPct
			}
			time.Sleep(symbolGap)
		}

		if time.Since(e.lastPnlSyncAt) >= pnlSyncInterval {
			e.syncRealizedPnL(ctx)
			e.lastPnlSyncAt = time.Now()
		}

		metrics.RecordCycle(time.Since(cycleStart))

		rest := risk.RestInterval(baseRest, maxATRPct)
		logger.Info("💤 本轮结束。波动率: %.2f%%。休眠 %.0f 秒...", maxATRPct, rest.Seconds())
		time.Sleep(rest)
	}
}

// processSymbol 处理单个交易对，返回其 ATR 波动率百分比供心跳调速
func (e *engine) processSymbol(ctx context.Context, symbol string, equity, available float64, positions []executor.PositionSummary) float64 {
	logger.Info("🔍 分析 %s...", symbol)

	snap, err := e.fetcher.Fetch(ctx, symbol)
	if err != nil {
		logger.Error("[%s] 获取行情失败: %v", symbol, err)
		return 0
	}
	atrPct := snap.ATRPercent()

	// 行情流价格足够新鲜时覆盖 REST 价格
	if price, at, ok := e.priceCache.Last(symbol); ok {
		if age := time.Since(at); age < 60*time.Second {
			snap.Price = price
		} else {
			logger.Warn("⚠️ [%s] 行情流价格已过期 (%v)，回退 REST 价格", symbol, age.Round(time.Second))
			metrics.RecordStalePriceFallback(symbol)
		}
	}

	longPos := findPosition(positions, symbol, "long")
	shortPos := findPosition(positions, symbol, "short")

	maxLeverage := int(e.cfg.Risk.MaxLeverage)
	d, err := e.maker.Decide(ctx, &decision.Request{
		Symbol:        symbol,
		MarketContext: snap.ContextString(),
		PositionInfo:  positionInfo(longPos, shortPos),
		ATRPercent:    atrPct,
		MaxLeverage:   maxLeverage,
	})
	if err != nil {
		logger.Error("[%s] 决策失败: %v", symbol, err)
		return atrPct
	}

	normalized := d.Normalize(maxLeverage)
	logger.Info("[%s] 🎯 决策: %s (理由: %s)", symbol, normalized.Action.Name(), normalized.Reason)

	switch normalized.Action {
	case decision.ActionBuy, decision.ActionSell:
		e.openPosition(ctx, symbol, snap, normalized, equity, available)
	case decision.ActionCloseLong:
		e.closePosition(ctx, symbol, snap.Price, longPos, "sell", "long", normalized.Reason)
	case decision.ActionCloseShort:
		e.closePosition(ctx, symbol, snap.Price, shortPos, "buy", "short", normalized.Reason)
	}

	return atrPct
}

// openPosition 按凯利仓位开仓，最多重试 10 次
func (e *engine) openPosition(ctx context.Context, symbol string, snap *market.Snapshot, d decision.Decision, equity, available float64) {
	qty := position.Size(position.Inputs{
		Symbol:        symbol,
		Equity:        equity,
		Available:     available,
		KellyFraction: d.KellyFraction,
		MaxPctLimit:   e.cfg.Risk.MaxOrderSizePct,
		Leverage:      d.Leverage,
		Price:         snap.Price,
		FaceValue:     e.instCache.FaceValue(symbol),
		MinSize:       e.instCache.MinSize(symbol),
	})
	if qty <= 0 {
		return
	}

	side, posSide := "buy", "long"
	if d.Action == decision.ActionSell {
		side, posSide = "sell", "short"
	}

	var result *executor.OrderResult
	policy := utils.RetryPolicy{MaxAttempts: 10, Backoff: utils.FixedBackoff(time.Second)}
	err := policy.Do(ctx, symbol+" 下单", func() error {
		res, err := e.exec.ExecuteOrder(ctx, &executor.OrderParams{
			Symbol:   symbol,
			Side:     side,
			PosSide:  posSide,
			Size:     qty,
			Price:    snap.Price,
			TPPct:    d.TPPct,
			SLPct:    d.SLPct,
			Leverage: d.Leverage,
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		logger.Error("❌ [%s] 下单最终失败: %v", symbol, err)
		return
	}

	logger.Info("✅ [%s] 订单已提交: %s", symbol, result.OrderID)

	// 交易日志与通知尽力而为，失败不影响主流程
	initialMargin := (qty * snap.Price * e.instCache.FaceValue(symbol)) / float64(d.Leverage)
	snapshotJSON, _ := json.Marshal(snap)
	if err := e.store.LogTrade(symbol, side, string(snapshotJSON), result.OrderID, d.StrategyVersion, initialMargin); err != nil {
		logger.Warn("⚠️ [%s] 写入交易日志失败: %v", symbol, err)
	}
	e.notifier.SendTradeSignal(symbol, side, qty, snap.Price, d.Reason, d.TPPct, d.SLPct)
}

// closePosition 全量平仓，不带止盈止损
func (e *engine) closePosition(ctx context.Context, symbol string, price float64, pos *executor.PositionSummary, side, posSide, reason string) {
	if pos == nil {
		return
	}

	policy := utils.RetryPolicy{MaxAttempts: 10, Backoff: utils.FixedBackoff(time.Second)}
	err := policy.Do(ctx, symbol+" 平仓", func() error {
		_, err := e.exec.ExecuteOrder(ctx, &executor.OrderParams{
			Symbol:  symbol,
			Side:    side,
			PosSide: posSide,
			Size:    pos.Size,
			Price:   price,
		})
		return err
	})
	if err != nil {
		logger.Error("❌ [%s] 平仓最终失败: %v", symbol, err)
		return
	}

	logger.Info("✅ [%s] 已平仓 (%s)", symbol, posSide)
	e.notifier.SendTradeSignal(symbol, "CLOSE "+strings.ToUpper(posSide), pos.Size, price, reason, 0, 0)
}

// syncRealizedPnL 从账单回填已实现盈亏
func (e *engine) syncRealizedPnL(ctx context.Context) {
	records, err := e.exec.FetchRecentPnL(ctx)
	if err != nil {
		logger.Warn("⚠️ 拉取盈亏账单失败: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}

	logger.Info("📥 同步 %d 条盈亏账单...", len(records))
	for _, r := range records {
		if r.OrderID == "" {
			continue
		}
		netPnL := r.Pnl + r.Fee
		if _, err := e.store.UpdateRealizedPnL(r.OrderID, netPnL); err != nil {
			logger.Warn("⚠️ 回填订单 %s 盈亏失败: %v", r.OrderID, err)
		}
	}
}

func findPosition(positions []executor.PositionSummary, symbol, side string) *executor.PositionSummary {
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].Side == side && positions[i].Size > 0 {
			return &positions[i]
		}
	}
	return nil
}

func positionInfo(longPos, shortPos *executor.PositionSummary) string {
	switch {
	case longPos != nil && shortPos != nil:
		return fmt.Sprintf("Long: %v (PnL $%v), Short: %v (PnL $%v)",
			longPos.Size, longPos.Upl, shortPos.Size, shortPos.Upl)
	case longPos != nil:
		return fmt.Sprintf("Long: %v (PnL $%v)", longPos.Size, longPos.Upl)
	case shortPos != nil:
		return fmt.Sprintf("Short: %v (PnL $%v)", shortPos.Size, shortPos.Upl)
	default:
		return "No active positions"
	}
}

func toReportItems(positions []executor.PositionSummary) []notify.PositionReportItem {
	items := make([]notify.PositionReportItem, 0, len(positions))
	for _, p := range positions {
		items = append(items, notify.PositionReportItem{
			Symbol:      p.Symbol,
			Side:        p.Side,
			NotionalUSD: p.NotionalUSD,
			MarginUSD:   p.MarginUSD,
			Upl:         p.Upl,
			Leverage:    p.Leverage,
		})
	}
	return items
}
