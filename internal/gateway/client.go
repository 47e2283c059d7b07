package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/logger"
)

// APIError 网关返回了非 0 的 code 或非 2xx 状态
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway error (http %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

// Client 支付网关 HTTP 客户端
type Client struct {
	baseURL    string
	impKey     string
	impSecret  string
	pg         string
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

// NewClient 创建网关客户端
func NewClient(cfg config.GatewayConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		impKey:     cfg.ImpKey,
		impSecret:  cfg.ImpSecret,
		pg:         cfg.PG,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// CreateCustomer 登记卡片并生成账单键
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) (*Customer, error) {
	if req.PG == "" {
		req.PG = c.pg
	}
	var out Customer
	path := "/subscribe/customers/" + url.PathEscape(req.CustomerUid)
	if err := c.call(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SchedulePayment 预约未来扣款，返回网关原始响应
func (c *Client) SchedulePayment(ctx context.Context, req ScheduleRequest) ([]Schedule, json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, http.MethodPost, "/subscribe/payments/schedule", req, &raw); err != nil {
		return nil, nil, err
	}
	// 网关已受理，解析失败不视为拒绝
	var out []Schedule
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn("Gateway accepted schedule for %s but response could not be decoded: %v", req.CustomerUid, err)
		return nil, raw, nil
	}
	return out, raw, nil
}

// GetSchedule 按 merchant_uid 查询预约
func (c *Client) GetSchedule(ctx context.Context, merchantUid string) (*Schedule, error) {
	var out Schedule
	if err := c.call(ctx, http.MethodGet, "/subscribe/payments/schedule/"+url.PathEscape(merchantUid), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSchedules 查询某账单键在时间窗内处于 scheduled 状态的预约
func (c *Client) ListSchedules(ctx context.Context, customerUid string, from, to time.Time) ([]Schedule, error) {
	var all []Schedule
	page := 1
	for {
		q := url.Values{}
		q.Set("from", fmt.Sprint(from.Unix()))
		q.Set("to", fmt.Sprint(to.Unix()))
		q.Set("schedule-status", ScheduleStatusScheduled)
		q.Set("page", fmt.Sprint(page))

		var out scheduleList
		path := "/subscribe/payments/schedule/customers/" + url.PathEscape(customerUid) + "?" + q.Encode()
		if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		all = append(all, out.List...)
		if out.Next == 0 || out.Next <= page {
			return all, nil
		}
		page = out.Next
	}
}

// Unschedule 取消预约扣款
func (c *Client) Unschedule(ctx context.Context, customerUid, merchantUid string) error {
	body := map[string]interface{}{
		"customer_uid": customerUid,
		"merchant_uid": []string{merchantUid},
	}
	return c.call(ctx, http.MethodPost, "/subscribe/payments/unschedule", body, nil)
}

// CancelPayment 取消（退款）已完成的支付
func (c *Client) CancelPayment(ctx context.Context, req CancelRequest) (*Payment, error) {
	var out Payment
	if err := c.call(ctx, http.MethodPost, "/payments/cancel", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByImpUid 按网关交易号查询支付
func (c *Client) FindByImpUid(ctx context.Context, impUid string) (*Payment, error) {
	var out Payment
	if err := c.call(ctx, http.MethodGet, "/payments/"+url.PathEscape(impUid), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByMerchantUid 按商户订单号查询支付
func (c *Client) FindByMerchantUid(ctx context.Context, merchantUid string) (*Payment, error) {
	var out Payment
	if err := c.call(ctx, http.MethodGet, "/payments/find/"+url.PathEscape(merchantUid), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	body := map[string]string{"imp_key": c.impKey, "imp_secret": c.impSecret}
	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/users/getToken", "", body, &tok); err != nil {
		return "", fmt.Errorf("get access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("gateway returned empty access token")
	}
	c.token = tok.AccessToken
	c.tokenExpiry = time.Unix(tok.ExpiredAt, 0)
	return c.token, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out interface{}) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, token, in, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	logger.Debug("Gateway %s %s -> %d in %s", method, path, resp.StatusCode, time.Since(start))

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Code: -1, Message: fmt.Sprintf("invalid response body: %v", err)}
	}
	if resp.StatusCode/100 != 2 || env.Code != 0 {
		return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Response) == 0 || string(env.Response) == "null" {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], env.Response...)
		return nil
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
