// Package tapd implements a read-only client for the TAPD REST API.
package tapd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
)

const userAgent = "TAPD-Feishu-Sync/1.0.0"

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds TAPD client configuration
type Config struct {
	WorkspaceID string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
}

// Client queries the TAPD API for attachments, stories and workspaces.
type Client struct {
	workspaceID string
	apiKey      string
	baseURL     string
	httpClient  HTTPClient
	logger      *zap.Logger
}

// NewClient creates a TAPD client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.tapd.cn"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		workspaceID: cfg.WorkspaceID,
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// WorkspaceID returns the configured workspace id
func (c *Client) WorkspaceID() string {
	return c.workspaceID
}

// apiResponse is the TAPD response envelope. Every endpoint wraps its
// payload in {status, data, info}; status 1 means success.
type apiResponse struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Info   string          `json:"info"`
}

// request issues an authenticated GET and unwraps the TAPD envelope.
func (c *Client) request(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.Transport(err, "构建TAPD请求失败")
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("TAPD API request", zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("TAPD API request failed", zap.String("path", path), zap.Error(err))
		return nil, apperrors.Transport(err, "TAPD API 请求失败")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transport(err, "读取TAPD响应失败")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("TAPD API bad status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return nil, apperrors.Transport(
			fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body)),
			"TAPD API 请求失败")
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.Transport(err, "解析TAPD响应失败")
	}
	if envelope.Status != 1 {
		info := envelope.Info
		if info == "" {
			info = "未知错误"
		}
		c.logger.Error("TAPD API error",
			zap.String("path", path),
			zap.String("info", info))
		return nil, apperrors.UpstreamAPI("TAPD API 错误: %s", info)
	}

	return envelope.Data, nil
}

// rawAttachment is the upstream attachment shape before normalization
type rawAttachment struct {
	ID          string      `json:"id"`
	Filename    string      `json:"filename"`
	Size        json.Number `json:"size"`
	URL         string      `json:"url"`
	Created     string      `json:"created"`
	Owner       string      `json:"owner"`
	Type        string      `json:"type"`
	EntryID     string      `json:"entry_id"`
	WorkspaceID string      `json:"workspace_id"`
}

// GetAttachment fetches one attachment by id. Returns (nil, nil) when the
// API answers successfully with an empty result set.
func (c *Client) GetAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	params := url.Values{}
	params.Set("id", attachmentID)
	params.Set("workspace_id", c.workspaceID)

	data, err := c.request(ctx, "/attachments", params)
	if err != nil {
		return nil, err
	}

	var items []struct {
		Attachment *rawAttachment `json:"Attachment"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.Transport(err, "解析TAPD附件数据失败")
	}
	if len(items) == 0 || items[0].Attachment == nil {
		c.logger.Warn("attachment not found", zap.String("attachment_id", attachmentID))
		return nil, nil
	}

	raw := items[0].Attachment
	size, _ := raw.Size.Int64()
	return &Attachment{
		ID:          raw.ID,
		Name:        raw.Filename,
		Size:        size,
		URL:         raw.URL,
		Created:     raw.Created,
		Author:      raw.Owner,
		EntryType:   raw.Type,
		EntryID:     raw.EntryID,
		WorkspaceID: raw.WorkspaceID,
	}, nil
}

// BuildStoryID expands a short story id into the canonical long form
// required by the stories endpoint: 11{workspaceID}00{shortID}.
func (c *Client) BuildStoryID(shortID string) string {
	return "11" + c.workspaceID + "00" + shortID
}

// GetStory fetches a story by id, expanding short ids first. Ids already
// starting with "11" and containing the workspace id are used as-is.
func (c *Client) GetStory(ctx context.Context, storyID string) (*Story, error) {
	fullID := storyID
	if !(strings.HasPrefix(storyID, "11") && strings.Contains(storyID, c.workspaceID)) {
		fullID = c.BuildStoryID(storyID)
	}

	params := url.Values{}
	params.Set("workspace_id", c.workspaceID)
	params.Set("id", fullID)

	data, err := c.request(ctx, "/stories", params)
	if err != nil {
		return nil, err
	}

	var items []struct {
		Story *Story `json:"Story"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.Transport(err, "解析TAPD需求数据失败")
	}
	if len(items) == 0 || items[0].Story == nil {
		c.logger.Warn("story not found",
			zap.String("story_id", storyID),
			zap.String("full_id", fullID))
		return nil, nil
	}

	return items[0].Story, nil
}

// rawWorkspace carries the optional objective fallback for description
type rawWorkspace struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Objective   string `json:"objective"`
	Status      string `json:"status"`
	Creator     string `json:"creator"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

// GetProject fetches workspace metadata for the given workspace id.
func (c *Client) GetProject(ctx context.Context, workspaceID string) (*Project, error) {
	params := url.Values{}
	params.Set("workspace_id", workspaceID)

	data, err := c.request(ctx, "/workspaces/get_workspace_info", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Workspace *rawWorkspace `json:"Workspace"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, apperrors.Transport(err, "解析TAPD项目数据失败")
	}
	if payload.Workspace == nil {
		c.logger.Warn("workspace not found", zap.String("workspace_id", workspaceID))
		return nil, nil
	}

	ws := payload.Workspace
	description := ws.Description
	if description == "" {
		description = ws.Objective
	}
	wsID := ws.ID
	if wsID == "" {
		wsID = workspaceID
	}
	return &Project{
		ID:          ws.ID,
		Name:        ws.Name,
		Description: description,
		Status:      ws.Status,
		Creator:     ws.Creator,
		Created:     ws.Created,
		Modified:    ws.Modified,
		WorkspaceID: wsID,
	}, nil
}

// StoryLink builds the TAPD web link for a story. No network call.
func (c *Client) StoryLink(storyID string) string {
	return fmt.Sprintf("https://www.tapd.cn/tapd_fe/%s/story/detail/%s", c.workspaceID, storyID)
}

// TestConnection probes the API; it never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	params := url.Values{}
	params.Set("workspace_id", c.workspaceID)
	params.Set("limit", "1")

	if _, err := c.request(ctx, "/stories", params); err != nil {
		c.logger.Error("TAPD connection test failed", zap.Error(err))
		return false
	}
	return true
}
