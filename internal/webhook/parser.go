package webhook

import (
	"regexp"
	"strings"
)

// attachmentNamePattern matches 前端-需求名.xlsx / 后端-需求名.xls, with a
// case-insensitive extension.
var attachmentNamePattern = regexp.MustCompile(`(?i)^(前端|后端)-(.+)\.(xlsx?)$`)

const parseErrorMessage = "附件名称格式应为：前端-需求名.xlsx 或 后端-需求名.xlsx"

// ParsedName is the result of validating an attachment filename.
type ParsedName struct {
	Type         string `json:"type"`
	StoryName    string `json:"storyName"`
	OriginalName string `json:"originalName"`
	IsValid      bool   `json:"isValid"`
	Error        string `json:"error,omitempty"`
}

// ParseAttachmentName validates an attachment filename and extracts the
// development side (前端/后端) and story name. It never fails: invalid
// input yields IsValid=false with a fixed error message.
func ParseAttachmentName(name string) ParsedName {
	match := attachmentNamePattern.FindStringSubmatch(name)
	if match == nil {
		return ParsedName{
			OriginalName: name,
			IsValid:      false,
			Error:        parseErrorMessage,
		}
	}

	return ParsedName{
		Type:         match[1],
		StoryName:    strings.TrimSpace(match[2]),
		OriginalName: name,
		IsValid:      true,
	}
}
