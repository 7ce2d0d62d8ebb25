package collab

import "errors"

// Error kinds returned by the client. Callers match them with errors.Is;
// a version conflict is never an error, it is an UpdateResult outcome.
var (
	ErrTransport    = errors.New("collab: transport failure")
	ErrUnauthorized = errors.New("collab: not authenticated")
	ErrForbidden    = errors.New("collab: not permitted")
	ErrValidation   = errors.New("collab: invalid request")
	ErrNotFound     = errors.New("collab: not found")
)
