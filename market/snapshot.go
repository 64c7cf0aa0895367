package market

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"perpcore/exchange/okx"
	"perpcore/indicators"
	"perpcore/logger"
)

// Source 行情快照依赖的行情接口
type Source interface {
	GetCandles(ctx context.Context, instID, bar string, limit int) ([]okx.Kline, error)
	GetFundingRate(ctx context.Context, instID string) (*okx.FundingRate, error)
	GetOpenInterest(ctx context.Context, instID string) (*okx.OpenInterest, error)
}

// IndicatorParams 指标参数
type IndicatorParams struct {
	KlineInterval string
	KlineLimit    int
	RSIPeriod     int
	ATRPeriod     int
	EMAFast       int
	EMASlow       int
}

// DefaultIndicatorParams 默认 1 小时 K 线与常用周期
func DefaultIndicatorParams() IndicatorParams {
	return IndicatorParams{
		KlineInterval: "1H",
		KlineLimit:    100,
		RSIPeriod:     14,
		ATRPeriod:     14,
		EMAFast:       20,
		EMASlow:       50,
	}
}

// Snapshot 某一时刻单个交易对的市场状态
type Snapshot struct {
	Timestamp    int64              `json:"timestamp"`
	Symbol       string             `json:"symbol"`
	Price        float64            `json:"price"`
	Indicators   indicators.Summary `json:"indicators"`
	FundingRate  float64            `json:"funding_rate"`
	OpenInterest float64            `json:"open_interest"`
}

// Fetcher 行情快照采集器
type Fetcher struct {
	source Source
	params IndicatorParams
}

func NewFetcher(source Source, params IndicatorParams) *Fetcher {
	if params.KlineInterval == "" {
		params = DefaultIndicatorParams()
	}
	return &Fetcher{source: source, params: params}
}

// FetchCandles 拉取K线并转换为时间升序
func (f *Fetcher) FetchCandles(ctx context.Context, symbol string) ([]indicators.Candle, error) {
	klines, err := f.source.GetCandles(ctx, symbol, f.params.KlineInterval, f.params.KlineLimit)
	if err != nil {
		return nil, fmt.Errorf("获取 %s K线失败: %w", symbol, err)
	}
	if len(klines) == 0 {
		return nil, fmt.Errorf("%s K线数据为空", symbol)
	}

	// 接口返回最新在前，指标计算需要时间升序
	candles := make([]indicators.Candle, len(klines))
	for i, k := range klines {
		candles[len(klines)-1-i] = indicators.Candle{
			Time:   k.OpenTime(),
			Open:   parseCandleF(k.O),
			High:   k.HighPrice(),
			Low:    k.LowPrice(),
			Close:  k.ClosePrice(),
			Volume: parseCandleF(k.Vol),
		}
	}
	return candles, nil
}

// Fetch 采集一份完整的市场快照
// K线缺失视为致命错误；资金费率与持仓量失败则降级为 0，不阻断流程
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*Snapshot, error) {
	candles, err := f.FetchCandles(ctx, symbol)
	if err != nil {
		return nil, err
	}

	fundingRate := 0.0
	if fr, err := f.source.GetFundingRate(ctx, symbol); err != nil {
		logger.Warn("⚠️ 获取 %s 资金费率失败，降级为 0: %v", symbol, err)
	} else {
		fundingRate = fr.RateF()
	}

	openInterest := 0.0
	if oi, err := f.source.GetOpenInterest(ctx, symbol); err != nil {
		logger.Warn("⚠️ 获取 %s 持仓量失败，降级为 0: %v", symbol, err)
	} else {
		openInterest = oi.OiF()
	}

	summary := indicators.Analyze(candles, f.params.RSIPeriod, f.params.ATRPeriod, f.params.EMAFast, f.params.EMASlow)

	return &Snapshot{
		Timestamp:    time.Now().Unix(),
		Symbol:       symbol,
		Price:        candles[len(candles)-1].Close,
		Indicators:   summary,
		FundingRate:  fundingRate,
		OpenInterest: openInterest,
	}, nil
}

// ATRPercent 波动率占价格的百分比
func (s *Snapshot) ATRPercent() float64 {
	if s.Price <= 0 {
		return 0
	}
	return s.Indicators.ATR / s.Price * 100.0
}

// ContextString 将快照转为自然语言描述，供决策端消费
func (s *Snapshot) ContextString() string {
	rsiDesc := "Neutral"
	if s.Indicators.RSI > 70.0 {
		rsiDesc = "Overbought"
	} else if s.Indicators.RSI < 30.0 {
		rsiDesc = "Oversold"
	}

	emaDesc := "Below short-term trend"
	if s.Price > s.Indicators.EMAFast {
		emaDesc = "Above short-term trend"
	}

	fundingPct := s.FundingRate * 100.0
	fundingDesc := "Neutral Funding"
	if fundingPct > 0.01 {
		fundingDesc = "High Positive Funding (Longs paying Shorts)"
	} else if fundingPct < -0.01 {
		fundingDesc = "High Negative Funding (Shorts paying Longs)"
	}

	return fmt.Sprintf(
		"Market Context for %s:\n"+
			"- Price Action: $%.2f, Trend is %s. Price is %s.\n"+
			"- Momentum: RSI is %.2f (%s), Volatility (ATR) is %.2f.\n"+
			"- Derivatives: %s, Open Interest is %.0f.",
		s.Symbol,
		s.Price, s.Indicators.Trend, emaDesc,
		s.Indicators.RSI, rsiDesc, s.Indicators.ATR,
		fundingDesc, s.OpenInterest,
	)
}

func parseCandleF(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
