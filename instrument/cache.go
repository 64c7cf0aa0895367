package instrument

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"perpcore/exchange/okx"
	"perpcore/logger"
)

// Meta 合约元数据，启动时整体加载后不再变更
type Meta struct {
	Symbol    string
	FaceValue float64 // 合约面值
	TickSize  float64 // 价格最小变动单位
	MinSize   float64 // 最小下单数量
	LotSize   float64 // 数量最小变动单位
}

// Source 合约元数据来源
type Source interface {
	GetInstruments(ctx context.Context, instType string) ([]okx.Instrument, error)
}

// Cache 合约元数据缓存
// 读多写少：启动时 Refresh 一次整体替换，之后只读；读写锁保证读方不会看到半成品缓存
type Cache struct {
	source Source

	mu    sync.RWMutex
	metas map[string]Meta
}

// NewCache 创建元数据缓存
func NewCache(source Source) *Cache {
	return &Cache{
		source: source,
		metas:  make(map[string]Meta),
	}
}

// Refresh 全量拉取合约信息并整体替换缓存
// 启动阶段失败应视为致命错误：没有元数据就无法安全地计算数量和价格
func (c *Cache) Refresh(ctx context.Context) error {
	logger.Info("⏳ [Instrument] 正在拉取合约元数据...")

	instruments, err := c.source.GetInstruments(ctx, "SWAP")
	if err != nil {
		return fmt.Errorf("拉取合约信息失败: %w", err)
	}

	metas := make(map[string]Meta, len(instruments))
	for _, inst := range instruments {
		if inst.InstID == "" {
			continue
		}
		metas[inst.InstID] = Meta{
			Symbol:    inst.InstID,
			FaceValue: inst.FaceValue(),
			TickSize:  inst.TickSize(),
			MinSize:   inst.MinSize(),
			LotSize:   inst.LotSize(),
		}
	}

	c.mu.Lock()
	c.metas = metas
	c.mu.Unlock()

	logger.Info("✅ [Instrument] 合约元数据缓存已初始化: %d 个交易对", len(metas))
	return nil
}

// Lookup 查询合约元数据
func (c *Cache) Lookup(symbol string) (Meta, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	meta, ok := c.metas[symbol]
	return meta, ok
}

// Len 缓存中的合约数量
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.metas)
}

// FaceValue 合约面值，未知交易对返回 0（上游必须把 0 面值短路为零仓位）
func (c *Cache) FaceValue(symbol string) float64 {
	if meta, ok := c.Lookup(symbol); ok {
		return meta.FaceValue
	}
	return 0
}

// MinSize 最小下单数量，未知交易对按 1 处理
func (c *Cache) MinSize(symbol string) float64 {
	if meta, ok := c.Lookup(symbol); ok {
		return meta.MinSize
	}
	return 1
}

// FormatSize 将数量向下对齐到 lot_size 的整数倍并格式化
// 加 epsilon 容忍浮点误差，避免 0.12 这类值被错误地舍到下一档
func (c *Cache) FormatSize(symbol string, size float64) string {
	meta, ok := c.Lookup(symbol)
	if ok && meta.LotSize > 0 {
		const epsilon = 1e-9
		steps := math.Floor((size + epsilon) / meta.LotSize)
		aligned := steps * meta.LotSize
		return strconv.FormatFloat(aligned, 'f', decimalsOf(meta.LotSize), 64)
	}
	return strconv.FormatFloat(size, 'f', -1, 64)
}

// FormatPrice 将价格格式化到 tick_size 对应的小数位
// 缺失元数据时按价格量级降级处理
func (c *Cache) FormatPrice(symbol string, price float64) string {
	meta, ok := c.Lookup(symbol)
	if ok && meta.TickSize > 0 {
		return strconv.FormatFloat(price, 'f', decimalsOf(meta.TickSize), 64)
	}

	var decimals int
	switch {
	case price < 0.01:
		decimals = 6
	case price < 1:
		decimals = 4
	case price < 10:
		decimals = 3
	default:
		decimals = 2
	}
	return strconv.FormatFloat(price, 'f', decimals, 64)
}

// decimalsOf 根据步长量级推导小数位数：0.001 -> 3，1 及以上 -> 0
func decimalsOf(step float64) int {
	if step >= 1 {
		return 0
	}
	return int(math.Ceil(math.Abs(math.Log10(step))))
}
