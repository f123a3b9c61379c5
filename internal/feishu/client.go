// Package feishu implements a minimal write client for the Feishu Open
// API (Bitable records), owning the tenant access token lifecycle.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
)

// tokenSafetyMargin is subtracted from the advertised token lifetime so a
// token is never used right at its expiry boundary.
const tokenSafetyMargin = 60 * time.Second

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds Feishu client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseToken string
	TableID   string
	BaseURL   string
	Timeout   time.Duration
}

// Record is a created Bitable record
type Record struct {
	RecordID string                 `json:"record_id"`
	ID       string                 `json:"id"`
	Fields   map[string]interface{} `json:"fields"`
}

// Client talks to the Feishu Open API with a cached tenant access token.
// Token refreshes are serialized behind the mutex: concurrent callers
// hitting an expired token wait for a single acquisition.
type Client struct {
	appID      string
	appSecret  string
	baseToken  string
	tableID    string
	baseURL    string
	httpClient HTTPClient
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewClient creates a Feishu client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://open.feishu.cn/open-apis"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		baseToken:  cfg.BaseToken,
		tableID:    cfg.TableID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// tenantToken returns a valid tenant access token, acquiring a fresh one
// when none is cached or the cached one has expired. Nothing is cached on
// failure.
func (c *Client) tenantToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	c.logger.Debug("acquiring Feishu tenant access token", zap.String("app_id", c.appID))

	payload, _ := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/v3/tenant_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return "", apperrors.Transport(err, "构建飞书令牌请求失败")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Feishu token request failed", zap.Error(err))
		return "", apperrors.Transport(err, "获取访问令牌失败")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Transport(err, "读取飞书令牌响应失败")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperrors.Transport(
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body)),
			"获取访问令牌失败")
	}

	var tokenResp struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", apperrors.Transport(err, "解析飞书令牌响应失败")
	}
	if tokenResp.Code != 0 || tokenResp.TenantAccessToken == "" {
		c.logger.Error("Feishu token acquisition rejected",
			zap.Int("code", tokenResp.Code),
			zap.String("msg", tokenResp.Msg))
		return "", apperrors.UpstreamAPI("获取访问令牌失败: code=%d msg=%s", tokenResp.Code, tokenResp.Msg)
	}

	c.token = tokenResp.TenantAccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tokenResp.Expire)*time.Second - tokenSafetyMargin)
	c.logger.Debug("Feishu tenant access token acquired",
		zap.Int("expire_seconds", tokenResp.Expire))

	return c.token, nil
}

// Request issues an authenticated call and returns the raw response body.
func (c *Client) Request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	token, err := c.tenantToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Transport(err, "编码飞书请求失败")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Transport(err, "构建飞书请求失败")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("Feishu API request", zap.String("method", method), zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Feishu API request failed", zap.String("path", path), zap.Error(err))
		return nil, apperrors.Transport(err, "飞书 API 请求失败")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport(err, "读取飞书响应失败")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Feishu API bad status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, apperrors.Transport(
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(respBody)),
			"飞书 API 请求失败")
	}

	return respBody, nil
}

// CreateRecord creates one record in the configured Bitable table.
func (c *Client) CreateRecord(ctx context.Context, fields map[string]interface{}) (*Record, error) {
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", c.baseToken, c.tableID)

	body, err := c.Request(ctx, http.MethodPost, path, map[string]interface{}{
		"fields": fields,
	})
	if err != nil {
		return nil, err
	}

	var createResp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Record *Record `json:"record"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &createResp); err != nil {
		return nil, apperrors.Transport(err, "解析飞书创建记录响应失败")
	}
	if createResp.Code != 0 || createResp.Data.Record == nil {
		c.logger.Error("Feishu record creation rejected",
			zap.Int("code", createResp.Code),
			zap.String("msg", createResp.Msg))
		return nil, apperrors.UpstreamAPI("创建记录失败: %s", createResp.Msg)
	}

	c.logger.Info("Feishu record created",
		zap.String("record_id", createResp.Data.Record.RecordID))
	return createResp.Data.Record, nil
}

// TestConnection lists the Bitable tables as a liveness probe; it never
// returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	path := fmt.Sprintf("/bitable/v1/apps/%s/tables", c.baseToken)

	body, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		c.logger.Error("Feishu connection test failed", zap.Error(err))
		return false
	}

	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Code == 0
}
