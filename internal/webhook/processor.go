package webhook

import (
	"context"

	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
	"github.com/liyao/tapd-feishu-sync/internal/feishu"
	"github.com/liyao/tapd-feishu-sync/internal/tapd"
)

// TapdReader is the slice of the TAPD client the processor needs.
type TapdReader interface {
	GetAttachment(ctx context.Context, attachmentID string) (*tapd.Attachment, error)
	GetStory(ctx context.Context, storyID string) (*tapd.Story, error)
	GetProject(ctx context.Context, workspaceID string) (*tapd.Project, error)
	StoryLink(storyID string) string
}

// RecordCreator writes records into the Feishu Bitable table.
type RecordCreator interface {
	CreateRecord(ctx context.Context, fields map[string]interface{}) (*feishu.Record, error)
}

// Result is the business outcome of one webhook delivery. A rejected
// attachment name is a Result, not an error.
type Result struct {
	Message        string      `json:"message"`
	EventKey       string      `json:"eventKey,omitempty"`
	SubEvent       string      `json:"subEvent,omitempty"`
	AttachmentID   string      `json:"attachmentId,omitempty"`
	AttachmentName string      `json:"attachmentName,omitempty"`
	FeishuRecordID string      `json:"feishuRecordId,omitempty"`
	ParsedInfo     *ParsedName `json:"parsedInfo,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// Processor dispatches TAPD webhook events and orchestrates the
// attachment → Feishu record pipeline.
type Processor struct {
	tapd   TapdReader
	feishu RecordCreator
	logger *zap.Logger
}

// NewProcessor creates a webhook processor
func NewProcessor(tapdClient TapdReader, feishuClient RecordCreator, logger *zap.Logger) *Processor {
	return &Processor{
		tapd:   tapdClient,
		feishu: feishuClient,
		logger: logger,
	}
}

// Process validates the event shape and dispatches on event key. Only
// story::attachment events carrying sub_event attachment_add are handled;
// everything else is acknowledged and ignored.
func (p *Processor) Process(ctx context.Context, payload *Payload) (*Result, error) {
	event := &payload.Event

	p.logger.Info("processing TAPD webhook",
		zap.String("event_key", event.EventKey),
		zap.String("object_type", event.ObjectType),
		zap.String("workspace_id", payload.WorkspaceID))

	switch event.EventKey {
	case "story::attachment":
		if event.SubEvent() == "attachment_add" {
			return p.handleAttachmentAdd(ctx, event)
		}
	default:
		p.logger.Warn("unhandled event type",
			zap.String("event_key", event.EventKey),
			zap.String("sub_event", event.SubEvent()))
		return &Result{
			Message:  "事件类型未处理",
			EventKey: event.EventKey,
			SubEvent: event.SubEvent(),
		}, nil
	}

	return &Result{Message: "事件未处理"}, nil
}

// handleAttachmentAdd runs the primary path: resolve the attachment and
// its story/project, validate the filename, and create the Bitable record.
func (p *Processor) handleAttachmentAdd(ctx context.Context, event *Event) (*Result, error) {
	attachmentID := stringField(event.New, "attachment_id")
	if attachmentID == "" {
		return nil, apperrors.Validation("无法从webhook数据中获取附件ID")
	}

	attachment, err := p.tapd.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if attachment == nil {
		return nil, apperrors.NotFound("无法获取附件信息")
	}

	// The attachment lookup API omits the url; the webhook's copy is
	// authoritative.
	attachment.URL = stringField(event.New, "attachment_url")

	p.logger.Info("attachment resolved",
		zap.String("attachment_id", attachment.ID),
		zap.String("name", attachment.Name),
		zap.String("entry_type", attachment.EntryType),
		zap.String("entry_id", attachment.EntryID),
		zap.String("url", attachment.URL))

	parsed := ParseAttachmentName(attachment.Name)
	if !parsed.IsValid {
		p.logger.Warn("attachment name rejected",
			zap.String("name", attachment.Name),
			zap.String("reason", parsed.Error))
		return &Result{
			Message: "附件名称格式不符合要求",
			Error:   parsed.Error,
		}, nil
	}

	var story *tapd.Story
	if attachment.EntryType == "story" {
		story, err = p.tapd.GetStory(ctx, attachment.EntryID)
		if err != nil {
			return nil, err
		}
	}

	project, err := p.tapd.GetProject(ctx, attachment.WorkspaceID)
	if err != nil {
		return nil, err
	}

	storyLink := ""
	if attachment.EntryType == "story" {
		storyLink = p.tapd.StoryLink(attachment.EntryID)
	}

	fields := BuildRecord(attachment, story, project, storyLink)

	record, err := p.feishu.CreateRecord(ctx, fields)
	if err != nil {
		return nil, err
	}

	p.logger.Info("record created in Feishu",
		zap.String("record_id", record.RecordID),
		zap.String("attachment_id", attachment.ID))

	return &Result{
		Message:        "成功处理附件事件",
		AttachmentID:   attachment.ID,
		AttachmentName: attachment.Name,
		FeishuRecordID: record.RecordID,
		ParsedInfo:     &parsed,
	}, nil
}
