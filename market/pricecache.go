package market

import (
	"sync"
	"time"
)

// tickEntry 一次价格观测
type tickEntry struct {
	price      float64
	observedAt time.Time
}

// PriceCache WebSocket 行情价格缓存
// 按交易对记录最新成交价及其观测时间，供下单前判断新鲜度
type PriceCache struct {
	ticks sync.Map // symbol -> tickEntry
}

func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Update 记录最新价格，观测时间取当前时刻
func (c *PriceCache) Update(symbol string, price float64) {
	c.ticks.Store(symbol, tickEntry{price: price, observedAt: time.Now()})
}

// Fresh 返回未过期的缓存价格
// 价格龄期必须严格小于 maxAge 才视为新鲜，否则返回 false
func (c *PriceCache) Fresh(symbol string, maxAge time.Duration) (float64, bool) {
	v, ok := c.ticks.Load(symbol)
	if !ok {
		return 0, false
	}
	entry := v.(tickEntry)
	if time.Since(entry.observedAt) >= maxAge {
		return 0, false
	}
	return entry.price, true
}

// Last 返回最近一次观测，不做新鲜度判断
func (c *PriceCache) Last(symbol string) (float64, time.Time, bool) {
	v, ok := c.ticks.Load(symbol)
	if !ok {
		return 0, time.Time{}, false
	}
	entry := v.(tickEntry)
	return entry.price, entry.observedAt, true
}
