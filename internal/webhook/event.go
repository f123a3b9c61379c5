package webhook

// Payload is the top-level TAPD webhook body.
type Payload struct {
	AutoTaskID       string                 `json:"auto_task_id"`
	AutoTaskBranchID string                 `json:"auto_task_branch_id"`
	WorkspaceID      string                 `json:"workspace_id"`
	Event            Event                  `json:"event"`
	Search           map[string]interface{} `json:"search,omitempty"`
}

// Event is the TAPD event envelope. The new/old payloads are arbitrary
// upstream JSON and stay loosely typed until narrowed by the processor.
type Event struct {
	WorkspaceID    string                 `json:"workspace_id"`
	User           string                 `json:"user"`
	ObjectType     string                 `json:"object_type"`
	ObjectID       string                 `json:"id"`
	Timestamp      int64                  `json:"timestamp"`
	TimestampMicro int64                  `json:"timestamp_micro"`
	EventKey       string                 `json:"event_key"`
	EventID        string                 `json:"event_id"`
	From           string                 `json:"from"`
	New            map[string]interface{} `json:"new,omitempty"`
	Old            map[string]interface{} `json:"old,omitempty"`
}

// SubEvent returns new.sub_event, or "" when absent.
func (e *Event) SubEvent() string {
	return stringField(e.New, "sub_event")
}

// stringField reads a string value out of a loosely-typed mapping.
func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
