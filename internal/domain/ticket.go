package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusOnHold   TicketStatus = "ON_HOLD"
	TicketStatusResolved TicketStatus = "RESOLVED"
	TicketStatusClosed   TicketStatus = "CLOSED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusOnHold, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// InitialTicketVersion is the version a freshly created ticket carries.
const InitialTicketVersion int64 = 1

// Ticket is the aggregate for support requests. Version is the only
// concurrency witness: it grows by exactly one on every accepted update.
type Ticket struct {
	ID             string
	ExternalKey    string
	RequesterEmail string
	AssigneeID     *string
	Title          string
	Description    string
	Status         TicketStatus
	Priority       TicketPriority
	Tags           []string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	UpdatedBy      *string
}

// TicketPatch lists the fields an update may change. Nil fields are left
// untouched. An AssigneeID pointing at "" clears the assignee.
type TicketPatch struct {
	Title       *string
	Description *string
	Status      *TicketStatus
	Priority    *TicketPriority
	AssigneeID  *string
	Tags        *[]string
}

// Fields returns the names of the set fields in a stable order.
func (p TicketPatch) Fields() []string {
	fields := []string{}
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.AssigneeID != nil {
		fields = append(fields, "assignee_id")
	}
	if p.Tags != nil {
		fields = append(fields, "tags")
	}
	return fields
}

// TicketVersion is the version witness of a ticket at a point in time.
type TicketVersion struct {
	TicketID  string
	Version   int64
	UpdatedAt time.Time
	UpdatedBy *string
}

// VersionConflict describes a rejected update: the caller expected one
// version, the store holds another.
type VersionConflict struct {
	TicketID        string
	ExpectedVersion int64
	CurrentVersion  int64
	UpdatedBy       *string
	UpdatedByName   *string
	UpdatedAt       time.Time
}

// VersionUpdateResult is the outcome of a version-checked update. Exactly
// one of Updated or Conflict is set.
type VersionUpdateResult struct {
	Updated  *TicketVersion
	Conflict *VersionConflict
}

// Succeeded reports whether the update was applied.
func (r VersionUpdateResult) Succeeded() bool {
	return r.Updated != nil
}
