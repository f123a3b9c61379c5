package tapd

// Attachment is the canonical shape of a TAPD attachment. Upstream field
// names (filename, owner, type) are normalized by the client.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
	Created     string `json:"created"`
	Author      string `json:"author"`
	EntryType   string `json:"entry_type"`
	EntryID     string `json:"entry_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Story is a TAPD requirement (需求)
type Story struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Creator     string `json:"creator"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	WorkspaceID string `json:"workspace_id"`
}

// Project is TAPD workspace metadata
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Creator     string `json:"creator"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	WorkspaceID string `json:"workspace_id"`
}
