// Package email sends requirement-confirmation mails to per-workspace
// project owners, with the triggering attachment re-sent as a mail
// attachment.
package email

import (
	"github.com/liyao/tapd-feishu-sync/internal/config"
)

// Routing is the read-only workspace → project owner table. It is loaded
// once at startup and never mutated.
type Routing struct {
	projects map[string]config.ProjectEmail
}

// NewRouting creates a routing table from configuration
func NewRouting(projects map[string]config.ProjectEmail) *Routing {
	if projects == nil {
		projects = map[string]config.ProjectEmail{}
	}
	return &Routing{projects: projects}
}

// Lookup returns the config for a workspace, or nil when none exists.
func (r *Routing) Lookup(workspaceID string) *config.ProjectEmail {
	if cfg, ok := r.projects[workspaceID]; ok {
		return &cfg
	}
	return nil
}

// Entry pairs a workspace id with its project config for listing.
type Entry struct {
	WorkspaceID string              `json:"workspaceId"`
	Config      config.ProjectEmail `json:"config"`
}

// All returns every configured project.
func (r *Routing) All() []Entry {
	entries := make([]Entry, 0, len(r.projects))
	for workspaceID, cfg := range r.projects {
		entries = append(entries, Entry{WorkspaceID: workspaceID, Config: cfg})
	}
	return entries
}
