package webhook

import (
	"github.com/liyao/tapd-feishu-sync/internal/tapd"
)

// Sentinels written when a lookup came back empty.
const (
	unknownStory   = "未知需求"
	unknownProject = "未知项目"
)

// BuildRecord maps the fetched entities into the Bitable field schema.
// storyLink is empty when the attachment does not belong to a story. The
// 工时评审状态 and 是否有异 fields are intentionally blank: downstream
// reviewers fill them in by hand.
func BuildRecord(attachment *tapd.Attachment, story *tapd.Story, project *tapd.Project, storyLink string) map[string]interface{} {
	storyText := unknownStory
	if story != nil && story.Name != "" {
		storyText = story.Name
	}

	projectName := unknownProject
	projectID := unknownProject
	if project != nil {
		if project.Name != "" {
			projectName = project.Name
		}
		if project.ID != "" {
			projectID = project.ID
		}
	}

	return map[string]interface{}{
		"需求tapd链接": map[string]interface{}{
			"link": storyLink,
			"text": storyText,
		},
		"项目":     projectName,
		"开发人员":   attachment.Author,
		"工时评审状态": "",
		"项目id":   projectID,
		"附件链接":   attachment.URL,
		"是否有异":   "",
	}
}
