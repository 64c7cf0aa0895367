package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 交易系统配置
type Config struct {
	// 交易所接入配置
	Exchange struct {
		APIKey     string `yaml:"api_key"`
		SecretKey  string `yaml:"secret_key"`
		Passphrase string `yaml:"passphrase"`
		BaseURL    string `yaml:"base_url"` // REST 地址，默认 https://www.okx.com
		WsURL      string `yaml:"ws_url"`   // 公共行情 WebSocket 地址
		Simulated  bool   `yaml:"simulated"` // 模拟盘（x-simulated-trading）
		DryRun     bool   `yaml:"dry_run"`   // 干跑模式：不发真实订单
	} `yaml:"exchange"`

	// 风控配置
	Risk struct {
		MaxLeverage      float64  `yaml:"max_leverage"`       // 最大允许杠杆倍数
		MaxOrderSizePct  float64  `yaml:"max_order_size_pct"` // 单笔最大保证金占权益比例
		MaxDrawdownLimit float64  `yaml:"max_drawdown_limit"` // 最大回撤告警阈值（如 0.10 表示 10%）
		AllowedSymbols   []string `yaml:"allowed_symbols"`    // 交易对白名单
	} `yaml:"risk"`

	// 节奏配置
	Timing struct {
		CycleRestSec int `yaml:"cycle_rest_sec"` // 基础循环休眠（秒），按波动率动态缩放
		SymbolGapMs  int `yaml:"symbol_gap_ms"`  // 交易对之间的固定间隔（毫秒）
		PnlSyncSec   int `yaml:"pnl_sync_sec"`   // 已实现盈亏对账间隔（秒）
		ReportSec    int `yaml:"report_sec"`     // 运行状态推送间隔（秒）
	} `yaml:"timing"`

	// 指标配置
	Indicators struct {
		KlineInterval string `yaml:"kline_interval"` // K线周期，如 "1H"
		KlineLimit    int    `yaml:"kline_limit"`    // 拉取K线数量
		RSIPeriod     int    `yaml:"rsi_period"`
		ATRPeriod     int    `yaml:"atr_period"`
		EMAFast       int    `yaml:"ema_fast"`
		EMASlow       int    `yaml:"ema_slow"`
	} `yaml:"indicators"`

	// 外部决策服务配置
	Decision struct {
		Endpoint        string `yaml:"endpoint"`         // 决策服务地址，为空则整体 Hold
		TimeoutSec      int    `yaml:"timeout_sec"`      // 请求超时（秒），默认120
		StrategyVersion string `yaml:"strategy_version"` // 写入交易日志的策略版本标签
	} `yaml:"decision"`

	// 通知配置
	Notifications struct {
		DingTalk struct {
			Enabled bool   `yaml:"enabled"`
			Webhook string `yaml:"webhook"`
			Secret  string `yaml:"secret"`  // 加签密钥，可为空
			Keyword string `yaml:"keyword"` // 安全关键词，默认 Trading
		} `yaml:"dingtalk"`
	} `yaml:"notifications"`

	// 数据库配置
	Database struct {
		Path string `yaml:"path"` // SQLite 文件路径，默认 ./data/perpcore.db
	} `yaml:"database"`

	// 监控指标配置
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"` // 监听地址，默认 :9090
	} `yaml:"metrics"`

	System struct {
		LogLevel string `yaml:"log_level"`
		Timezone string `yaml:"timezone"` // 时区，如 "Asia/Hong_Kong"
	} `yaml:"system"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数据加载配置
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults 填充默认值
func (c *Config) applyDefaults() {
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://www.okx.com"
	}
	if c.Exchange.WsURL == "" {
		c.Exchange.WsURL = "wss://ws.okx.com:8443/ws/v5/public"
	}
	if c.Risk.MaxLeverage == 0 {
		c.Risk.MaxLeverage = 10
	}
	if c.Risk.MaxOrderSizePct == 0 {
		c.Risk.MaxOrderSizePct = 0.20
	}
	if c.Risk.MaxDrawdownLimit == 0 {
		c.Risk.MaxDrawdownLimit = 0.10
	}
	if c.Timing.CycleRestSec == 0 {
		c.Timing.CycleRestSec = 1800
	}
	if c.Timing.SymbolGapMs == 0 {
		c.Timing.SymbolGapMs = 500
	}
	if c.Timing.PnlSyncSec == 0 {
		c.Timing.PnlSyncSec = 3600
	}
	if c.Timing.ReportSec == 0 {
		c.Timing.ReportSec = 3600
	}
	if c.Indicators.KlineInterval == "" {
		c.Indicators.KlineInterval = "1H"
	}
	if c.Indicators.KlineLimit == 0 {
		c.Indicators.KlineLimit = 100
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.ATRPeriod == 0 {
		c.Indicators.ATRPeriod = 14
	}
	if c.Indicators.EMAFast == 0 {
		c.Indicators.EMAFast = 20
	}
	if c.Indicators.EMASlow == 0 {
		c.Indicators.EMASlow = 50
	}
	if c.Decision.TimeoutSec == 0 {
		c.Decision.TimeoutSec = 120
	}
	if c.Decision.StrategyVersion == "" {
		c.Decision.StrategyVersion = "unknown"
	}
	if c.Notifications.DingTalk.Keyword == "" {
		c.Notifications.DingTalk.Keyword = "Trading"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/perpcore.db"
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
}

// applyEnvOverrides 环境变量覆盖（密钥类配置优先从环境注入，避免写入文件）
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OKX_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("OKX_SECRET_KEY"); v != "" {
		c.Exchange.SecretKey = v
	}
	if v := os.Getenv("OKX_PASSPHRASE"); v != "" {
		c.Exchange.Passphrase = v
	}
	if v := os.Getenv("OKX_SIMULATED"); v == "1" {
		c.Exchange.Simulated = true
	}
	if v := os.Getenv("DRY_RUN"); v == "1" {
		c.Exchange.DryRun = true
	}
	if v := os.Getenv("DINGTALK_WEBHOOK"); v != "" {
		c.Notifications.DingTalk.Webhook = v
	}
	if v := os.Getenv("DINGTALK_SECRET"); v != "" {
		c.Notifications.DingTalk.Secret = v
	}
	if v := os.Getenv("STRATEGY_VERSION"); v != "" {
		c.Decision.StrategyVersion = v
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if len(c.Risk.AllowedSymbols) == 0 {
		return fmt.Errorf("risk.allowed_symbols 不能为空")
	}
	if c.Risk.MaxLeverage < 1 {
		return fmt.Errorf("risk.max_leverage 必须 >= 1，当前: %v", c.Risk.MaxLeverage)
	}
	if c.Risk.MaxOrderSizePct <= 0 || c.Risk.MaxOrderSizePct > 1 {
		return fmt.Errorf("risk.max_order_size_pct 必须在 (0, 1] 区间，当前: %v", c.Risk.MaxOrderSizePct)
	}
	if c.Risk.MaxDrawdownLimit <= 0 || c.Risk.MaxDrawdownLimit >= 1 {
		return fmt.Errorf("risk.max_drawdown_limit 必须在 (0, 1) 区间，当前: %v", c.Risk.MaxDrawdownLimit)
	}
	if !c.Exchange.DryRun {
		if c.Exchange.APIKey == "" || c.Exchange.SecretKey == "" || c.Exchange.Passphrase == "" {
			return fmt.Errorf("非干跑模式下必须配置交易所 API 密钥")
		}
	}
	return nil
}

// IsSymbolAllowed 检查交易对是否在白名单内
func (c *Config) IsSymbolAllowed(symbol string) bool {
	for _, s := range c.Risk.AllowedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}
