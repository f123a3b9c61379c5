package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liyao/tapd-feishu-sync/internal/apperrors"
	"github.com/liyao/tapd-feishu-sync/internal/feishu"
	"github.com/liyao/tapd-feishu-sync/internal/tapd"
)

// mockTapd implements TapdReader for testing
type mockTapd struct {
	attachment *tapd.Attachment
	story      *tapd.Story
	project    *tapd.Project

	attachmentErr error
	storyErr      error
	projectErr    error

	attachmentCalls int
	storyCalls      int
	projectCalls    int
}

func (m *mockTapd) GetAttachment(_ context.Context, _ string) (*tapd.Attachment, error) {
	m.attachmentCalls++
	return m.attachment, m.attachmentErr
}

func (m *mockTapd) GetStory(_ context.Context, _ string) (*tapd.Story, error) {
	m.storyCalls++
	return m.story, m.storyErr
}

func (m *mockTapd) GetProject(_ context.Context, _ string) (*tapd.Project, error) {
	m.projectCalls++
	return m.project, m.projectErr
}

func (m *mockTapd) StoryLink(storyID string) string {
	return "https://www.tapd.cn/tapd_fe/64029412/story/detail/" + storyID
}

// mockFeishu implements RecordCreator for testing
type mockFeishu struct {
	record *feishu.Record
	err    error
	calls  int
	fields map[string]interface{}
}

func (m *mockFeishu) CreateRecord(_ context.Context, fields map[string]interface{}) (*feishu.Record, error) {
	m.calls++
	m.fields = fields
	return m.record, m.err
}

func attachmentPayload(newData map[string]interface{}) *Payload {
	return &Payload{
		WorkspaceID: "64029412",
		Event: Event{
			WorkspaceID: "64029412",
			EventKey:    "story::attachment",
			ObjectType:  "story",
			New:         newData,
		},
	}
}

func TestProcessorDispatch(t *testing.T) {
	tests := []struct {
		name        string
		eventKey    string
		subEvent    string
		wantMessage string
	}{
		{
			name:        "unknown event key is ignored with echo",
			eventKey:    "bug::create",
			subEvent:    "bug_add",
			wantMessage: "事件类型未处理",
		},
		{
			name:        "attachment event with wrong sub event",
			eventKey:    "story::attachment",
			subEvent:    "attachment_delete",
			wantMessage: "事件未处理",
		},
		{
			name:        "attachment event without sub event",
			eventKey:    "story::attachment",
			subEvent:    "",
			wantMessage: "事件未处理",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tapdMock := &mockTapd{}
			feishuMock := &mockFeishu{}
			p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

			newData := map[string]interface{}{}
			if tt.subEvent != "" {
				newData["sub_event"] = tt.subEvent
			}
			payload := &Payload{
				Event: Event{EventKey: tt.eventKey, New: newData},
			}

			result, err := p.Process(context.Background(), payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMessage, result.Message)

			// Ignored events never reach the outbound clients
			assert.Zero(t, tapdMock.attachmentCalls)
			assert.Zero(t, tapdMock.storyCalls)
			assert.Zero(t, tapdMock.projectCalls)
			assert.Zero(t, feishuMock.calls)

			if tt.wantMessage == "事件类型未处理" {
				assert.Equal(t, tt.eventKey, result.EventKey)
				assert.Equal(t, tt.subEvent, result.SubEvent)
			}
		})
	}
}

func TestProcessorHandleAttachmentAdd(t *testing.T) {
	t.Run("end to end success", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachment: &tapd.Attachment{
				ID:          "A1",
				Name:        "前端-登录优化.xlsx",
				URL:         "",
				Author:      "李耀",
				EntryType:   "story",
				EntryID:     "S1",
				WorkspaceID: "64029412",
			},
			story:   &tapd.Story{ID: "S1", Name: "登录优化"},
			project: &tapd.Project{ID: "P1", Name: "核心系统"},
		}
		feishuMock := &mockFeishu{record: &feishu.Record{RecordID: "rec_1"}}
		p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":      "attachment_add",
			"attachment_id":  "A1",
			"attachment_url": "https://x/y.xlsx",
		})

		result, err := p.Process(context.Background(), payload)
		require.NoError(t, err)

		assert.Equal(t, "成功处理附件事件", result.Message)
		assert.Equal(t, "A1", result.AttachmentID)
		assert.Equal(t, "前端-登录优化.xlsx", result.AttachmentName)
		assert.Equal(t, "rec_1", result.FeishuRecordID)
		require.NotNil(t, result.ParsedInfo)
		assert.Equal(t, "前端", result.ParsedInfo.Type)
		assert.Equal(t, "登录优化", result.ParsedInfo.StoryName)
		assert.True(t, result.ParsedInfo.IsValid)

		// Assembled record reflects the fetched entities
		linkField := feishuMock.fields["需求tapd链接"].(map[string]interface{})
		assert.Equal(t, "登录优化", linkField["text"])
		assert.Equal(t, "https://www.tapd.cn/tapd_fe/64029412/story/detail/S1", linkField["link"])
		assert.Equal(t, "核心系统", feishuMock.fields["项目"])
		assert.Equal(t, "P1", feishuMock.fields["项目id"])

		// The webhook's url wins over the lookup's
		assert.Equal(t, "https://x/y.xlsx", feishuMock.fields["附件链接"])

		assert.Equal(t, 1, tapdMock.storyCalls)
		assert.Equal(t, 1, tapdMock.projectCalls)
	})

	t.Run("webhook url overrides lookup url", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachment: &tapd.Attachment{
				ID:          "A1",
				Name:        "前端-登录优化.xlsx",
				URL:         "https://tapd/old.xlsx",
				EntryType:   "story",
				EntryID:     "S1",
				WorkspaceID: "64029412",
			},
			story:   &tapd.Story{Name: "登录优化"},
			project: &tapd.Project{ID: "P1", Name: "核心系统"},
		}
		feishuMock := &mockFeishu{record: &feishu.Record{RecordID: "rec_2"}}
		p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":      "attachment_add",
			"attachment_id":  "A1",
			"attachment_url": "https://webhook/new.xlsx",
		})

		_, err := p.Process(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "https://webhook/new.xlsx", feishuMock.fields["附件链接"])
	})

	t.Run("missing attachment id is a processing error", func(t *testing.T) {
		p := NewProcessor(&mockTapd{}, &mockFeishu{}, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event": "attachment_add",
		})

		_, err := p.Process(context.Background(), payload)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.Contains(t, err.Error(), "无法从webhook数据中获取附件ID")
	})

	t.Run("attachment lookup miss is a processing error", func(t *testing.T) {
		p := NewProcessor(&mockTapd{attachment: nil}, &mockFeishu{}, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":     "attachment_add",
			"attachment_id": "A1",
		})

		_, err := p.Process(context.Background(), payload)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("invalid name is a business outcome not an error", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachment: &tapd.Attachment{
				ID:        "A1",
				Name:      "随便一个文件.pdf",
				EntryType: "story",
				EntryID:   "S1",
			},
		}
		feishuMock := &mockFeishu{}
		p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":     "attachment_add",
			"attachment_id": "A1",
		})

		result, err := p.Process(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "附件名称格式不符合要求", result.Message)
		assert.NotEmpty(t, result.Error)

		// Rejected before any further lookups or writes
		assert.Zero(t, tapdMock.storyCalls)
		assert.Zero(t, tapdMock.projectCalls)
		assert.Zero(t, feishuMock.calls)
	})

	t.Run("story lookup skipped for non-story entries", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachment: &tapd.Attachment{
				ID:          "A1",
				Name:        "后端-任务导入.xlsx",
				EntryType:   "task",
				EntryID:     "T1",
				WorkspaceID: "64029412",
			},
			project: &tapd.Project{ID: "P1", Name: "核心系统"},
		}
		feishuMock := &mockFeishu{record: &feishu.Record{RecordID: "rec_3"}}
		p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":     "attachment_add",
			"attachment_id": "A1",
		})

		result, err := p.Process(context.Background(), payload)
		require.NoError(t, err)
		assert.Equal(t, "成功处理附件事件", result.Message)
		assert.Zero(t, tapdMock.storyCalls)

		linkField := feishuMock.fields["需求tapd链接"].(map[string]interface{})
		assert.Equal(t, unknownStory, linkField["text"])
		assert.Equal(t, "", linkField["link"])
	})

	t.Run("feishu failure propagates", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachment: &tapd.Attachment{
				ID:          "A1",
				Name:        "前端-登录优化.xlsx",
				EntryType:   "story",
				EntryID:     "S1",
				WorkspaceID: "64029412",
			},
			story:   &tapd.Story{Name: "登录优化"},
			project: &tapd.Project{ID: "P1", Name: "核心系统"},
		}
		feishuMock := &mockFeishu{err: apperrors.UpstreamAPI("创建记录失败: FieldNameNotFound")}
		p := NewProcessor(tapdMock, feishuMock, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":     "attachment_add",
			"attachment_id": "A1",
		})

		_, err := p.Process(context.Background(), payload)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindUpstreamAPI, apperrors.KindOf(err))
	})

	t.Run("tapd transport failure propagates", func(t *testing.T) {
		tapdMock := &mockTapd{
			attachmentErr: apperrors.Transport(errors.New("dial tcp: timeout"), "TAPD API 请求失败"),
		}
		p := NewProcessor(tapdMock, &mockFeishu{}, zap.NewNop())

		payload := attachmentPayload(map[string]interface{}{
			"sub_event":     "attachment_add",
			"attachment_id": "A1",
		})

		_, err := p.Process(context.Background(), payload)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
	})
}
