package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"perpcore/logger"
)

// DingTalkNotifier 钉钉机器人通知器
type DingTalkNotifier struct {
	webhook string
	secret  string
	keyword string // 机器人安全设置的自定义关键词，消息缺失时自动补上
	client  *http.Client
}

func NewDingTalkNotifier(webhook, secret, keyword string) *DingTalkNotifier {
	return &DingTalkNotifier{
		webhook: webhook,
		secret:  secret,
		keyword: keyword,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// signedURL 按钉钉加签规范生成带签名的 Webhook 地址
func (dn *DingTalkNotifier) signedURL() string {
	if dn.secret == "" {
		return dn.webhook
	}

	timestamp := time.Now().UnixMilli()
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, dn.secret)
	h := hmac.New(sha256.New, []byte(dn.secret))
	h.Write([]byte(stringToSign))
	sign := url.QueryEscape(base64.StdEncoding.EncodeToString(h.Sum(nil)))

	sep := "?"
	if strings.Contains(dn.webhook, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", dn.webhook, sep, timestamp, sign)
}

func (dn *DingTalkNotifier) attachKeyword(content string) string {
	if dn.keyword == "" || strings.Contains(content, dn.keyword) {
		return content
	}
	return fmt.Sprintf("%s\n\n[%s]", content, dn.keyword)
}

// send 发送消息体，失败只记日志不上抛
func (dn *DingTalkNotifier) send(payload map[string]interface{}) {
	if dn.webhook == "" {
		return
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		logger.Error("❌ 序列化钉钉消息失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dn.signedURL(), bytes.NewReader(jsonData))
	if err != nil {
		logger.Error("❌ 创建钉钉请求失败: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dn.client.Do(req)
	if err != nil {
		logger.Error("❌ 钉钉网络错误: %v", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		logger.Error("❌ 钉钉返回错误: %d %s", result.ErrCode, result.ErrMsg)
	}
}

func (dn *DingTalkNotifier) sendMarkdown(title, text string) {
	dn.send(map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  dn.attachKeyword(text),
		},
	})
}

// SendAlert 发送文本告警
func (dn *DingTalkNotifier) SendAlert(content string) {
	dn.send(map[string]interface{}{
		"msgtype": "text",
		"text": map[string]string{
			"content": fmt.Sprintf("⚠️ [PerpCore Alert]\n%s", dn.attachKeyword(content)),
		},
	})
}

// SendTradeSignal 发送交易执行通知
func (dn *DingTalkNotifier) SendTradeSignal(symbol, action string, size, price float64, reason string, tpPct, slPct float64) {
	title := fmt.Sprintf("%s %s (Signal)", strings.ToUpper(action), symbol)

	lowerAction := strings.ToLower(action)
	sideColor := "#FF0000"
	if strings.Contains(lowerAction, "buy") || strings.Contains(lowerAction, "long") {
		sideColor = "#00AA00"
	}

	var tpPrice, slPrice float64
	if strings.Contains(lowerAction, "buy") {
		tpPrice = price * (1.0 + tpPct)
		slPrice = price * (1.0 - slPct)
	} else {
		tpPrice = price * (1.0 - tpPct)
		slPrice = price * (1.0 + slPct)
	}

	text := fmt.Sprintf(
		"### <font color='%s'>🚀 交易执行: %s</font>\n\n"+
			"**标的**: %s\n"+
			"**数量**: %.4f 张\n"+
			"**成交价**: $%.2f\n"+
			"\n---\n"+
			"**🎯 计划止盈**: $%.2f (%.1f%%)\n"+
			"**🛡️ 计划止损**: $%.2f (%.1f%%)\n"+
			"\n---\n"+
			"**🧠 决策逻辑**:\n> %s\n",
		sideColor, strings.ToUpper(action), symbol, size, price,
		tpPrice, tpPct*100,
		slPrice, slPct*100,
		reason,
	)
	dn.sendMarkdown(title, text)
}

// SendStartupReport 发送启动报告
func (dn *DingTalkNotifier) SendStartupReport(initialCapital float64, startTime string, positions []PositionReportItem) {
	text := fmt.Sprintf(
		"### PerpCore 交易引擎\n\n"+
			"---\n"+
			"💰 **初始本金**: `$%.2f`\n"+
			"🕒 **启动时间**: %s\n"+
			"📊 **本轮收益**: `0.00%%` (基准已建立)\n"+
			"\n---\n"+
			"#### 🏷️ 初始持仓详情\n%s",
		initialCapital, startTime, formatPositions(positions, true),
	)
	dn.sendMarkdown("🚀 系统已启动 (Boot)", text)
}

// SendStatusReport 发送定时运行报告
func (dn *DingTalkNotifier) SendStatusReport(equity, pnlPct float64, positions []PositionReportItem) {
	pnlColor := "#00AA00"
	pnlSign := ""
	if pnlPct >= 0 {
		pnlColor = "#FF0000"
		pnlSign = "+"
	}

	text := fmt.Sprintf(
		"### 🤖 系统运行状态\n\n"+
			"💰 **当前权益**: `$%.2f`\n"+
			"📈 **累计收益**: <font color='%s'>%s%.2f%%</font>\n\n"+
			"🏷️ **持仓资金分布**:\n%s",
		equity, pnlColor, pnlSign, pnlPct, formatPositions(positions, false),
	)
	dn.sendMarkdown("📊 运行周报", text)
}

// formatPositions 渲染持仓明细，verbose 为启动报告的多行版式
func formatPositions(positions []PositionReportItem, verbose bool) string {
	if len(positions) == 0 {
		return "> *当前无持仓 (Flat)*"
	}

	var b strings.Builder
	for _, p := range positions {
		sideIcon := "🔴"
		if strings.Contains(strings.ToLower(p.Side), "long") {
			sideIcon = "🟢"
		}
		pnlColor := "#00AA00"
		pnlSign := ""
		if p.Upl >= 0 {
			pnlColor = "#FF0000"
			pnlSign = "+"
		}

		base := p.Symbol
		if idx := strings.Index(base, "-"); idx > 0 {
			base = base[:idx]
		}

		if verbose {
			fmt.Fprintf(&b,
				"- %s **%s** (%dx)\n   📦 **仓位价值**: `$%.0f`\n   🔒 **投入本金**: `$%.0f`\n   💰 **浮动盈亏**: <font color='%s'>%s$%.2f</font>\n\n",
				sideIcon, base, p.Leverage, p.NotionalUSD, p.MarginUSD, pnlColor, pnlSign, p.Upl)
		} else {
			fmt.Fprintf(&b,
				"- %s **%s** (%dx)\n   `$%.0f`(仓位) | `$%.0f`(本金) | <font color='%s'>$%.2f</font>\n",
				sideIcon, base, p.Leverage, p.NotionalUSD, p.MarginUSD, pnlColor, p.Upl)
		}
	}
	return b.String()
}
