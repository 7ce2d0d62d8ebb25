package collab

import (
	"fmt"
	"time"

	"github.com/deskline/helpdesk/internal/api/dto"
)

// Outcome discriminates an UpdateResult.
type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ConflictDescriptor describes a rejected update. It lives until the user
// retries, refreshes or cancels.
type ConflictDescriptor struct {
	TicketID        string
	ExpectedVersion int64
	CurrentVersion  int64
	UpdatedBy       *string // agent id
	UpdatedByName   *string
	LastUpdated     *time.Time
}

// UpdateResult is the outcome of a version-checked update. NewVersion is
// set for OutcomeSuccess, Conflict for OutcomeConflict.
type UpdateResult struct {
	Outcome    Outcome
	NewVersion int64
	Conflict   *ConflictDescriptor
}

// Succeeded reports whether the update was applied.
func (r UpdateResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Detect classifies the server's answer to an update submitted with
// expected. Any version other than the one submitted is a conflict; there
// is no merge. A response that is neither a well-formed success nor a
// well-formed conflict is a transport failure.
func Detect(ticketID string, expected int64, wire dto.UpdateTicketResponse) (UpdateResult, error) {
	if wire.Conflict || !wire.Success {
		if wire.CurrentVersion == nil {
			return UpdateResult{}, fmt.Errorf("%w: conflict response without current_version", ErrTransport)
		}
		return conflictResult(ticketID, expected, *wire.CurrentVersion, wire), nil
	}
	if wire.NewVersion == nil {
		return UpdateResult{}, fmt.Errorf("%w: success response without new_version", ErrTransport)
	}
	return UpdateResult{Outcome: OutcomeSuccess, NewVersion: *wire.NewVersion}, nil
}

func conflictResult(ticketID string, expected, current int64, wire dto.UpdateTicketResponse) UpdateResult {
	return UpdateResult{
		Outcome: OutcomeConflict,
		Conflict: &ConflictDescriptor{
			TicketID:        ticketID,
			ExpectedVersion: expected,
			CurrentVersion:  current,
			UpdatedBy:       wire.UpdatedBy,
			UpdatedByName:   wire.UpdatedByName,
			LastUpdated:     wire.UpdatedAt,
		},
	}
}
