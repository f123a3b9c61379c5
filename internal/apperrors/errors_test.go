package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"not found", NotFound("未找到workspace_id为 %s 的项目配置", "123"), KindNotFound},
		{"validation", Validation("附件名称格式不符合要求"), KindValidation},
		{"upstream", UpstreamAPI("TAPD API 错误: %s", "denied"), KindUpstreamAPI},
		{"transport", Transport(errors.New("dial tcp"), "TAPD API 请求失败"), KindTransport},
		{"wrapped once", fmt.Errorf("handling failed: %w", NotFound("missing")), KindNotFound},
		{"wrapped twice", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", Validation("bad"))), KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(KindValidation, errors.New("status=404"), "附件下载失败")
	assert.Equal(t, "附件下载失败: status=404", err.Error())
	assert.Equal(t, "status=404", err.Unwrap().Error())

	bare := Validation("项目 %s 未启用邮件通知", "工时评审系统")
	assert.Equal(t, "项目 工时评审系统 未启用邮件通知", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
