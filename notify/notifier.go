package notify

import (
	"perpcore/config"
	"perpcore/logger"
)

// PositionReportItem 报告中的单条持仓
type PositionReportItem struct {
	Symbol      string
	Side        string
	NotionalUSD float64
	MarginUSD   float64
	Upl         float64
	Leverage    int
}

// Notifier 通知接口，所有发送均为尽力而为，失败只记日志
type Notifier interface {
	SendAlert(content string)
	SendTradeSignal(symbol, action string, size, price float64, reason string, tpPct, slPct float64)
	SendStartupReport(initialCapital float64, startTime string, positions []PositionReportItem)
	SendStatusReport(equity, pnlPct float64, positions []PositionReportItem)
}

// NewNotifier 根据配置创建通知器，未启用时返回空实现
func NewNotifier(cfg *config.Config) Notifier {
	if cfg.Notifications.DingTalk.Enabled && cfg.Notifications.DingTalk.Webhook != "" {
		logger.Info("✅ 钉钉通知已启用")
		return NewDingTalkNotifier(
			cfg.Notifications.DingTalk.Webhook,
			cfg.Notifications.DingTalk.Secret,
			cfg.Notifications.DingTalk.Keyword,
		)
	}
	logger.Info("ℹ️ 未配置通知渠道，告警仅写入日志")
	return NopNotifier{}
}

// NopNotifier 空实现
type NopNotifier struct{}

func (NopNotifier) SendAlert(content string) {}
func (NopNotifier) SendTradeSignal(symbol, action string, size, price float64, reason string, tpPct, slPct float64) {
}
func (NopNotifier) SendStartupReport(initialCapital float64, startTime string, positions []PositionReportItem) {
}
func (NopNotifier) SendStatusReport(equity, pnlPct float64, positions []PositionReportItem) {}
