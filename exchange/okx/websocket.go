package okx

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"perpcore/logger"
	"perpcore/metrics"

	"github.com/gorilla/websocket"
)

// TickerHandler 行情回调（最新成交价）
type TickerHandler func(instID string, price float64)

// TickerStream 公共行情 WebSocket 客户端
// 单条连接订阅全部交易对的 tickers 频道，断开后固定等待 5 秒重连，进程生命周期内不退出
type TickerStream struct {
	url           string
	symbols       []string
	onTick        TickerHandler
	reconnectWait time.Duration
	pingInterval  time.Duration
}

// NewTickerStream 创建行情流客户端
func NewTickerStream(url string, symbols []string, onTick TickerHandler) *TickerStream {
	if url == "" {
		url = DefaultPublicWsURL
	}
	return &TickerStream{
		url:           url,
		symbols:       symbols,
		onTick:        onTick,
		reconnectWait: 5 * time.Second,
		pingInterval:  20 * time.Second,
	}
}

// Run 运行行情流（阻塞，直到 ctx 取消）
func (s *TickerStream) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		logger.Info("🔌 [OKX WebSocket] 正在连接行情流 (%s)...", s.url)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			logger.Error("❌ [OKX WebSocket] 连接失败: %v，%v 后重连...", err, s.reconnectWait)
			metrics.RecordWsReconnect()
			if !s.wait(ctx) {
				return
			}
			continue
		}

		logger.Info("✅ [OKX WebSocket] 行情流已连接")

		if err := s.subscribe(conn); err != nil {
			logger.Error("❌ [OKX WebSocket] 订阅失败: %v", err)
			conn.Close()
			metrics.RecordWsReconnect()
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.readLoop(ctx, conn)
		conn.Close()

		metrics.RecordWsReconnect()
		logger.Warn("⚠️ [OKX WebSocket] 连接断开，%v 后重连...", s.reconnectWait)
		if !s.wait(ctx) {
			return
		}
	}
}

// subscribe 一条消息订阅全部交易对的 tickers 频道
func (s *TickerStream) subscribe(conn *websocket.Conn) error {
	args := make([]map[string]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  sym,
		})
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	return conn.WriteJSON(subMsg)
}

// readLoop 读取消息直到出错或 ctx 取消
func (s *TickerStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	// 应用层心跳，防止服务端 30 秒空闲断开
	stopPing := make(chan struct{})
	go s.keepAlive(conn, stopPing)
	defer close(stopPing)

	for {
		if ctx.Err() != nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("⚠️ [OKX WebSocket] 读取消息失败: %v", err)
			return
		}

		s.handleMessage(message)
	}
}

// keepAlive 定期发送应用层 ping
func (s *TickerStream) keepAlive(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				logger.Warn("⚠️ [OKX WebSocket] 发送 ping 失败: %v", err)
				return
			}
		case <-stop:
			return
		}
	}
}

// handleMessage 处理推送消息，仅识别 tickers 数据，其他消息形态一律忽略
func (s *TickerStream) handleMessage(message []byte) {
	// 服务端对应用层 ping 的回应
	if string(message) == "pong" {
		return
	}

	var msg struct {
		Event string `json:"event"`
		Msg   string `json:"msg"`
		Arg   struct {
			Channel string `json:"channel"`
		} `json:"arg"`
		Data []struct {
			InstID string `json:"instId"`
			Last   string `json:"last"`
		} `json:"data"`
	}

	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.Event != "" {
		if msg.Event == "error" {
			logger.Error("❌ [OKX WebSocket] 服务端错误: %s", msg.Msg)
		} else if msg.Event == "subscribe" {
			logger.Info("✅ [OKX WebSocket] 订阅成功")
		}
		return
	}

	if msg.Arg.Channel != "tickers" {
		return
	}

	for _, item := range msg.Data {
		if item.InstID == "" {
			continue
		}
		price, err := strconv.ParseFloat(item.Last, 64)
		if err != nil {
			continue
		}
		if s.onTick != nil {
			s.onTick(item.InstID, price)
		}
	}
}

// wait 重连等待，ctx 取消时返回 false
func (s *TickerStream) wait(ctx context.Context) bool {
	select {
	case <-time.After(s.reconnectWait):
		return true
	case <-ctx.Done():
		return false
	}
}
