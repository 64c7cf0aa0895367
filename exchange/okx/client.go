package okx

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"perpcore/utils"
)

const (
	// REST API 默认地址
	DefaultRestURL = "https://www.okx.com"
	// 公共行情 WebSocket 默认地址
	DefaultPublicWsURL = "wss://ws.okx.com:8443/ws/v5/public"
)

// APIError OKX 业务层错误（HTTP 2xx 但 code != "0"）
// 传输层不重试此类错误，由调用方在语义层决定是否重试
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OKX 业务错误 %s: %s", e.Code, e.Msg)
}

// Client OKX REST API 客户端（带签名与传输层重试）
type Client struct {
	apiKey     string
	secretKey  string
	passphrase string
	baseURL    string
	simulated  bool // 是否使用模拟盘
	httpClient *http.Client
	retry      utils.RetryPolicy
}

// NewClient 创建 OKX 客户端
func NewClient(apiKey, secretKey, passphrase, baseURL string, simulated bool) *Client {
	if baseURL == "" {
		baseURL = DefaultRestURL
	}

	return &Client{
		apiKey:     apiKey,
		secretKey:  secretKey,
		passphrase: passphrase,
		baseURL:    baseURL,
		simulated:  simulated,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: utils.RetryPolicy{
			MaxAttempts: 3,
			Backoff:     utils.LinearBackoff(500 * time.Millisecond),
			Retryable: func(err error) bool {
				// 业务错误是终态，只有连接失败/非2xx才重试
				var apiErr *APIError
				return !errors.As(err, &apiErr)
			},
		},
	}
}

// sign 生成签名：HMAC-SHA256(timestamp + method + path + body)，base64 编码
func (c *Client) sign(timestamp, method, requestPath, body string) string {
	message := timestamp + method + requestPath + body
	h := hmac.New(sha256.New, []byte(c.secretKey))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// request 发送签名请求，返回响应中的 data 字段
func (c *Client) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var bodyBytes []byte
	var err error

	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
	}

	var data json.RawMessage
	err = c.retry.Do(ctx, "OKX "+method+" "+path, func() error {
		data, err = c.doRequest(ctx, method, path, bodyBytes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// doRequest 单次请求
func (c *Client) doRequest(ctx context.Context, method, path string, bodyBytes []byte) (json.RawMessage, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	// 时间戳（ISO 8601 毫秒格式）
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	// GET 请求签名时 body 为空字符串
	bodyStr := ""
	if len(bodyBytes) > 0 {
		bodyStr = string(bodyBytes)
	}
	signature := c.sign(timestamp, method, path, bodyStr)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OK-ACCESS-KEY", c.apiKey)
	req.Header.Set("OK-ACCESS-SIGN", signature)
	req.Header.Set("OK-ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("OK-ACCESS-PASSPHRASE", c.passphrase)

	// 模拟盘标识
	if c.simulated {
		req.Header.Set("x-simulated-trading", "1")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP 错误 %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if apiResp.Code != "0" {
		return nil, &APIError{Code: apiResp.Code, Msg: apiResp.Msg}
	}

	return apiResp.Data, nil
}

// GetInstruments 获取合约信息（全量）
func (c *Client) GetInstruments(ctx context.Context, instType string) ([]Instrument, error) {
	path := fmt.Sprintf("/api/v5/public/instruments?instType=%s", instType)

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var instruments []Instrument
	if err := json.Unmarshal(data, &instruments); err != nil {
		return nil, fmt.Errorf("解析合约信息失败: %w", err)
	}
	return instruments, nil
}

// GetBalance 获取账户余额
func (c *Client) GetBalance(ctx context.Context, ccy string) ([]Balance, error) {
	path := "/api/v5/account/balance"
	if ccy != "" {
		path += "?ccy=" + ccy
	}

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var balances []Balance
	if err := json.Unmarshal(data, &balances); err != nil {
		return nil, fmt.Errorf("解析余额信息失败: %w", err)
	}
	return balances, nil
}

// GetPositions 获取持仓信息
func (c *Client) GetPositions(ctx context.Context) ([]Position, error) {
	data, err := c.request(ctx, "GET", "/api/v5/account/positions?instType=SWAP", nil)
	if err != nil {
		return nil, err
	}

	var positions []Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("解析持仓信息失败: %w", err)
	}
	return positions, nil
}

// SetLeverage 设置杠杆倍数
func (c *Client) SetLeverage(ctx context.Context, instID string, lever int, mgnMode string) error {
	body := map[string]interface{}{
		"instId":  instID,
		"lever":   fmt.Sprintf("%d", lever),
		"mgnMode": mgnMode,
	}

	_, err := c.request(ctx, "POST", "/api/v5/account/set-leverage", body)
	return err
}

// PlaceOrder 下单
func (c *Client) PlaceOrder(ctx context.Context, order *OrderRequest) ([]PlaceOrderResult, error) {
	data, err := c.request(ctx, "POST", "/api/v5/trade/order", order)
	if err != nil {
		return nil, err
	}

	var results []PlaceOrderResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("解析下单结果失败: %w", err)
	}
	return results, nil
}

// GetBills 获取账单流水
func (c *Client) GetBills(ctx context.Context, instType, billType string) ([]Bill, error) {
	path := fmt.Sprintf("/api/v5/account/bills?instType=%s&type=%s", instType, billType)

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var bills []Bill
	if err := json.Unmarshal(data, &bills); err != nil {
		return nil, fmt.Errorf("解析账单失败: %w", err)
	}
	return bills, nil
}

// GetCandles 获取K线数据（OKX 返回按时间倒序）
func (c *Client) GetCandles(ctx context.Context, instID, bar string, limit int) ([]Kline, error) {
	path := fmt.Sprintf("/api/v5/market/candles?instId=%s&bar=%s", instID, bar)
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	// OKX 返回二维字符串数组
	var rawKlines [][]string
	if err := json.Unmarshal(data, &rawKlines); err != nil {
		return nil, fmt.Errorf("解析K线数据失败: %w", err)
	}

	klines := make([]Kline, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 6 {
			continue
		}
		klines = append(klines, Kline{
			Ts:   raw[0],
			O:    raw[1],
			H:    raw[2],
			L:    raw[3],
			C:    raw[4],
			Vol:  raw[5],
		})
	}
	return klines, nil
}

// GetFundingRate 获取资金费率
func (c *Client) GetFundingRate(ctx context.Context, instID string) (*FundingRate, error) {
	path := fmt.Sprintf("/api/v5/public/funding-rate?instId=%s", instID)

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var rates []FundingRate
	if err := json.Unmarshal(data, &rates); err != nil {
		return nil, fmt.Errorf("解析资金费率失败: %w", err)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("未找到 %s 的资金费率", instID)
	}
	return &rates[0], nil
}

// GetOpenInterest 获取持仓量
func (c *Client) GetOpenInterest(ctx context.Context, instID string) (*OpenInterest, error) {
	path := fmt.Sprintf("/api/v5/public/open-interest?instId=%s", instID)

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var ois []OpenInterest
	if err := json.Unmarshal(data, &ois); err != nil {
		return nil, fmt.Errorf("解析持仓量失败: %w", err)
	}
	if len(ois) == 0 {
		return nil, fmt.Errorf("未找到 %s 的持仓量", instID)
	}
	return &ois[0], nil
}

// GetTicker 获取行情快照
func (c *Client) GetTicker(ctx context.Context, instID string) (*Ticker, error) {
	path := fmt.Sprintf("/api/v5/market/ticker?instId=%s", instID)

	data, err := c.request(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var tickers []Ticker
	if err := json.Unmarshal(data, &tickers); err != nil {
		return nil, fmt.Errorf("解析行情数据失败: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("未找到 %s 的行情数据", instID)
	}
	return &tickers[0], nil
}
