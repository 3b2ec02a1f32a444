// Package event defines event chats as the discovery service sees them, the
// candidate filters applied before ranking, and the stores that supply them.
package event

import (
	"errors"
	"slices"
	"time"

	"github.com/onnwee/eventchat/internal/geo"
)

// Validation errors returned by Event.Validate.
var (
	ErrMissingID         = errors.New("event id is required")
	ErrInvalidTimeRange  = errors.New("event end date is before its start date")
	ErrInvalidCoordinate = errors.New("event coordinate is out of range")
)

// Location is where an event takes place.
type Location struct {
	Description string         `json:"description"`
	Coordinate  geo.Coordinate `json:"coordinate"`
}

// Event is a time-boxed gathering with a chat and a member list.
// Ranking treats events as immutable values.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Location    Location  `json:"location"`
	Members     []string  `json:"members"`
	Creator     string    `json:"creator"`
	IsPublic    bool      `json:"is_public"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// IsMember reports whether userID has joined the event.
func (e *Event) IsMember(userID string) bool {
	return slices.Contains(e.Members, userID)
}

// Discoverable reports whether the event may be shown to non-members:
// it is public and has not started yet.
func (e *Event) Discoverable(now time.Time) bool {
	return e.IsPublic && e.StartDate.After(now)
}

// Validate checks the invariants a store enforces on write.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if !e.EndDate.IsZero() && e.EndDate.Before(e.StartDate) {
		return ErrInvalidTimeRange
	}
	if !e.Location.Coordinate.Valid() {
		return ErrInvalidCoordinate
	}
	return nil
}

// Clone returns a deep copy so callers can never alias store-owned slices.
func (e *Event) Clone() *Event {
	c := *e
	c.Tags = slices.Clone(e.Tags)
	c.Members = slices.Clone(e.Members)
	return &c
}

// FilterDiscoverable returns the discoverable events in input order.
func FilterDiscoverable(events []Event, now time.Time) []Event {
	out := make([]Event, 0, len(events))
	for i := range events {
		if events[i].Discoverable(now) {
			out = append(out, events[i])
		}
	}
	return out
}

// MergeUnique concatenates lists, keeping the first occurrence of each id.
func MergeUnique(lists ...[]Event) []Event {
	seen := make(map[string]struct{})
	var out []Event
	for _, list := range lists {
		for _, e := range list {
			if _, ok := seen[e.ID]; ok {
				continue
			}
			seen[e.ID] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
