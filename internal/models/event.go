package models

import (
	"time"
)

// CountryItaly is the only country this service surfaces events for.
const CountryItaly = "Italy"

// ConcertEvent is the canonical shape every concert source normalizes into.
// It is never persisted; the ledger only keeps its ID.
type ConcertEvent struct {
	ID          string    `json:"id"`
	Artist      string    `json:"artist"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time,omitempty"`
	Venue       string    `json:"venue"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	Verified    bool      `json:"verified"`
	SupportActs []string  `json:"support_acts,omitempty"`
	TicketInfo  string    `json:"ticket_info,omitempty"`
	PriceRange  string    `json:"price_range,omitempty"`
}

// IsFuture reports whether the event is strictly after now.
func (e ConcertEvent) IsFuture(now time.Time) bool {
	return !e.Date.IsZero() && e.Date.After(now)
}

// IsItalian reports whether the event is eligible for this service's
// country gate.
func (e ConcertEvent) IsItalian() bool {
	return e.Country == CountryItaly
}

// Eligible reports whether the event may be surfaced to users: a stable id,
// an Italian venue, and a future date.
func (e ConcertEvent) Eligible(now time.Time) bool {
	return e.ID != "" && e.IsItalian() && e.IsFuture(now)
}
