package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
)

const defaultAttachmentName = "attachment.file"

// HTTPClient interface for testability
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Message is a composed mail ready for the transport.
type Message struct {
	To             string
	Subject        string
	Text           string
	HTML           string
	AttachmentName string
	AttachmentData []byte
}

// Sender is the black-box mail transport: it delivers a message and
// reports the message id assigned to it.
type Sender interface {
	Send(ctx context.Context, msg *Message) (messageID string, err error)
}

// SendRequest is the inbound trigger body.
type SendRequest struct {
	WorkspaceID        string `json:"workspace_id" binding:"required"`
	StoryName          string `json:"story_name" binding:"required"`
	AttachmentURL      string `json:"attachment_url" binding:"required"`
	AttachmentFilename string `json:"attachment_filename"`
	EmailContent       string `json:"email_content"`
}

// SendResult reports a delivered notification.
type SendResult struct {
	Success     bool   `json:"success"`
	MessageID   string `json:"messageId"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	ProjectName string `json:"projectName"`
}

// Notifier routes a requirement confirmation to the project owner of a
// workspace, downloading the attachment before composing the mail.
type Notifier struct {
	routing    *Routing
	sender     Sender
	httpClient HTTPClient
	logger     *zap.Logger
}

// NewNotifier creates an email notifier
func NewNotifier(routing *Routing, sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{
		routing:    routing,
		sender:     sender,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// SendRequirementConfirmation looks up the workspace's routing entry,
// downloads the attachment, and sends the confirmation mail.
func (n *Notifier) SendRequirementConfirmation(ctx context.Context, req *SendRequest) (*SendResult, error) {
	projectCfg := n.routing.Lookup(req.WorkspaceID)
	if projectCfg == nil {
		return nil, apperrors.NotFound("未找到workspace_id为 %s 的项目配置", req.WorkspaceID)
	}
	if !projectCfg.EmailEnabled {
		return nil, apperrors.Validation("项目 %s 未启用邮件通知", projectCfg.ProjectName)
	}

	n.logger.Info("sending requirement confirmation email",
		zap.String("workspace_id", req.WorkspaceID),
		zap.String("project", projectCfg.ProjectName),
		zap.String("recipient", projectCfg.ResponsibleEmail),
		zap.String("story_name", req.StoryName))

	attachmentData, err := n.downloadAttachment(ctx, req.AttachmentURL)
	if err != nil {
		return nil, err
	}

	filename := req.AttachmentFilename
	if filename == "" {
		filename = filenameFromURL(req.AttachmentURL)
	}
	content := req.EmailContent
	if content == "" {
		content = "需求已确认"
	}

	msg := &Message{
		To:             projectCfg.ResponsibleEmail,
		Subject:        req.StoryName,
		Text:           content,
		HTML:           buildEmailHTML(req.StoryName, content, projectCfg.ProjectName, projectCfg.ResponsibleName),
		AttachmentName: filename,
		AttachmentData: attachmentData,
	}

	messageID, err := n.sender.Send(ctx, msg)
	if err != nil {
		n.logger.Error("email delivery failed",
			zap.String("workspace_id", req.WorkspaceID),
			zap.String("story_name", req.StoryName),
			zap.Error(err))
		return nil, err
	}

	n.logger.Info("email sent",
		zap.String("message_id", messageID),
		zap.String("recipient", projectCfg.ResponsibleEmail),
		zap.String("subject", req.StoryName))

	return &SendResult{
		Success:     true,
		MessageID:   messageID,
		Recipient:   projectCfg.ResponsibleEmail,
		Subject:     req.StoryName,
		ProjectName: projectCfg.ProjectName,
	}, nil
}

// downloadAttachment fetches the attachment bytes. Failures surface as
// validation errors carrying the upstream message, matching the 400 the
// trigger endpoint reports for them.
func (n *Notifier) downloadAttachment(ctx context.Context, rawURL string) ([]byte, error) {
	cleanURL := strings.TrimSpace(rawURL)
	n.logger.Debug("downloading attachment", zap.String("url", cleanURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cleanURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "附件下载失败")
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "附件下载失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Validation("附件下载失败: status=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, err, "附件下载失败")
	}

	n.logger.Debug("attachment downloaded",
		zap.String("url", cleanURL),
		zap.Int("size", len(data)))

	return data, nil
}

// filenameFromURL extracts the last path segment when it looks like a
// filename, dropping query parameters.
func filenameFromURL(rawURL string) string {
	parts := strings.Split(strings.TrimSpace(rawURL), "/")
	last := parts[len(parts)-1]
	if last == "" || !strings.Contains(last, ".") {
		return defaultAttachmentName
	}
	if name := strings.SplitN(last, "?", 2)[0]; name != "" {
		return name
	}
	return defaultAttachmentName
}

// buildEmailHTML renders the notification body.
func buildEmailHTML(storyName, content, projectName, responsibleName string) string {
	if responsibleName == "" {
		responsibleName = "项目负责人"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>需求确认通知</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
    .content { padding: 20px; }
    .footer { background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-top: 20px; font-size: 12px; color: #666; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h2>需求确认通知</h2>
    </div>
    <div class="content">
      <p>尊敬的 %s，</p>
      <p><strong>项目：</strong>%s</p>
      <p><strong>需求名称：</strong>%s</p>
      <p><strong>通知内容：</strong>%s</p>
      <p>请查看附件中的详细信息。</p>
    </div>
    <div class="footer">
      <p>此邮件由系统自动发送，请勿回复。</p>
      <p>发送时间：%s</p>
    </div>
  </div>
</body>
</html>`, responsibleName, projectName, storyName, content,
		time.Now().Format("2006-01-02 15:04:05"))
}
