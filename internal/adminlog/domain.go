// Package adminlog owns the append-only audit trail of privileged
// mutations.
package adminlog

import (
	"time"

	"github.com/watchplus/watchplus/internal/roles"
)

// Audited actions. Corrections and deletions of log entries are
// themselves actions so the trail never has silent gaps.
const (
	ActionAssignRole    = "assign"
	ActionRevokeRole    = "revoke"
	ActionActivate      = "activate"
	ActionDeactivate    = "deactivate"
	ActionBlockDomain   = "block_domain"
	ActionUnblockDomain = "unblock_domain"
	ActionCorrectEntry  = "correct_log"
	ActionDeleteEntry   = "delete_log"
)

// Entry is a single audit record. Entries are written exactly once per
// privileged mutation and never edited except through the super-admin
// correction path.
type Entry struct {
	ID           string     `json:"id"`
	ActorUID     string     `json:"actorUid"`
	ActorRole    roles.Role `json:"actorRole"`
	Action       string     `json:"action"`
	TargetUID    string     `json:"targetUid,omitempty"`
	PreviousRole roles.Role `json:"previousRole,omitempty"`
	NewRole      roles.Role `json:"newRole,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"timestamp"`
}

// ListFilters narrows and pages an audit review.
type ListFilters struct {
	ActorUID  string
	TargetUID string
	Action    string
	From      time.Time
	To        time.Time
	Page      int
	PageSize  int
}

// PagingInfo reports the review window position.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result bundles a page of entries with paging metadata.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
