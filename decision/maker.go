package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"perpcore/logger"
)

// Request 提交给决策端的上下文
type Request struct {
	Symbol        string  `json:"symbol"`
	MarketContext string  `json:"market_context"`
	PositionInfo  string  `json:"position_info"`
	ATRPercent    float64 `json:"atr_percent"`
	MaxLeverage   int     `json:"max_leverage"`
}

// Maker 决策端接口
// 返回的 Decision 未经校验，调用方必须先 Normalize 再使用
type Maker interface {
	Decide(ctx context.Context, req *Request) (*Decision, error)
}

// wireDecision 决策端返回的 JSON 结构
type wireDecision struct {
	Action          string  `json:"action"`
	Reason          string  `json:"reason"`
	TP              float64 `json:"tp"`
	SL              float64 `json:"sl"`
	Leverage        int     `json:"leverage"`
	WinRate         float64 `json:"win_rate"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}

// HTTPMaker 通过 HTTP 调用外部决策服务
type HTTPMaker struct {
	endpoint        string
	strategyVersion string
	httpClient      *http.Client
}

func NewHTTPMaker(endpoint, strategyVersion string, timeout time.Duration) *HTTPMaker {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPMaker{
		endpoint:        endpoint,
		strategyVersion: strategyVersion,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// Decide 将市场上下文发给决策服务，解析返回的交易建议
func (m *HTTPMaker) Decide(ctx context.Context, req *Request) (*Decision, error) {
	if m.endpoint == "" {
		return nil, fmt.Errorf("未配置决策服务地址")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化决策请求失败: %w", err)
	}

	logger.Info("🧠 请求决策服务分析 %s (ATR: %.2f%%)...", req.Symbol, req.ATRPercent)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("决策服务请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取决策响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("决策服务返回 %d: %s", resp.StatusCode, string(body))
	}

	var wire wireDecision
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("解析决策响应失败: %w", err)
	}

	d := &Decision{
		Action:          ParseAction(wire.Action),
		Reason:          wire.Reason,
		TPPct:           wire.TP,
		SLPct:           wire.SL,
		Leverage:        wire.Leverage,
		WinRate:         wire.WinRate,
		PayoffRatio:     wire.RiskRewardRatio,
		StrategyVersion: m.strategyVersion,
	}
	// 凯利分数由胜率和赔率推导，不信任决策端自报的数值
	d.KellyFraction = kelly(d.WinRate, d.PayoffRatio)
	return d, nil
}
