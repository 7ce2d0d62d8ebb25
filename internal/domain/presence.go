package domain

import "fmt"

// PresenceStatus is an agent's availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceBusy    PresenceStatus = "busy"
	PresenceOffline PresenceStatus = "offline"
)

// Valid reports whether s is one of the four statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceOnline, PresenceAway, PresenceBusy, PresenceOffline:
		return true
	}
	return false
}

// ParsePresenceStatus validates raw.
func ParsePresenceStatus(raw string) (PresenceStatus, error) {
	s := PresenceStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown presence status %q", raw)
	}
	return s, nil
}
