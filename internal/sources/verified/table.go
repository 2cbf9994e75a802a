// Package verified holds the curated table of officially announced Italian
// concerts. Every entry is manually vetted against the artist's own
// announcement before it is added here.
package verified

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/sources"

	"github.com/rs/zerolog/log"
)

// SourceName tags events produced by this adapter
const SourceName = "VerifiedTable"

// Table is an in-process source of curated concert announcements.
type Table struct {
	entries []models.ConcertEvent
	now     func() time.Time
}

// Option customizes a Table
type Option func(*Table)

// WithEntries replaces the default curated entries
func WithEntries(entries []models.ConcertEvent) Option {
	return func(t *Table) { t.entries = entries }
}

// WithClock overrides the clock used for the future-date filter
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// NewTable creates a verified table source
func NewTable(opts ...Option) *Table {
	t := &Table{
		entries: defaultEntries(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name implements sources.Source
func (t *Table) Name() string { return SourceName }

// Search returns the curated future Italian concerts of the first entry
// whose artist matches the query. Matching is tried in order: exact,
// substring containment either direction, then fuzzy token overlap.
func (t *Table) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	if !sources.IsItalyCode(countryCode) {
		return nil, nil
	}

	query := sources.NormalizeArtist(artist)
	if query == "" {
		return nil, nil
	}

	matchers := []func(query, candidate string) bool{
		func(q, c string) bool { return q == c },
		func(q, c string) bool { return strings.Contains(c, q) || strings.Contains(q, c) },
		fuzzyMatch,
	}

	for _, match := range matchers {
		var found []models.ConcertEvent
		var matched string
		for _, e := range t.entries {
			candidate := sources.NormalizeArtist(e.Artist)
			if matched != "" && candidate != matched {
				continue
			}
			if matched == "" && !match(query, candidate) {
				continue
			}
			matched = candidate
			if e.Eligible(t.now()) {
				found = append(found, e)
			}
		}
		if matched != "" {
			if len(found) > 0 {
				log.Debug().
					Str("artist", artist).
					Str("matched", matched).
					Int("concerts", len(found)).
					Msg("Verified table match")
			}
			return found, nil
		}
	}

	return nil, nil
}

// Artists returns the artists with at least one future verified concert
func (t *Table) Artists() []string {
	seen := make(map[string]bool)
	var artists []string
	for _, e := range t.entries {
		if !e.Eligible(t.now()) || seen[e.Artist] {
			continue
		}
		seen[e.Artist] = true
		artists = append(artists, e.Artist)
	}
	return artists
}

// fuzzyMatch accepts two artist names when their word sets intersect, or when
// any pair of words longer than 3 characters contains one another or shares a
// prefix longer than 3 characters. The prefix rule is what lets common
// misspellings ("metalica") resolve: neither word contains the other, but
// both start with "metal".
func fuzzyMatch(query, candidate string) bool {
	queryWords := strings.Fields(query)
	candidateWords := strings.Fields(candidate)

	for _, qw := range queryWords {
		for _, cw := range candidateWords {
			if qw == cw {
				return true
			}
			if len(qw) > 3 && len(cw) > 3 {
				if strings.Contains(qw, cw) || strings.Contains(cw, qw) {
					return true
				}
				if commonPrefixLen(qw, cw) > 3 {
					return true
				}
			}
		}
	}

	return false
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// SampleEvent fabricates an unverified placeholder concert for an artist.
// It exists so the interactive search path can demonstrate the notification
// shape when every source comes back empty; the scheduled dispatcher never
// uses it, so placeholder ids never enter the ledger.
func SampleEvent(artist string) models.ConcertEvent {
	slug := strings.ReplaceAll(sources.NormalizeArtist(artist), " ", "_")
	return models.ConcertEvent{
		ID:         fmt.Sprintf("sample_%s", slug),
		Artist:     artist,
		Name:       fmt.Sprintf("%s - Tour", artist),
		Date:       time.Now().AddDate(0, 6, 0),
		Venue:      "Palazzo dello Sport",
		City:       "Roma",
		Country:    models.CountryItaly,
		Source:     "Sample",
		Verified:   false,
		TicketInfo: "Esempio di notifica: nessun concerto reale trovato per questo artista.",
	}
}

func defaultEntries() []models.ConcertEvent {
	return []models.ConcertEvent{
		{
			ID:          "metallica_bologna_2026_06_03",
			Artist:      "Metallica",
			Name:        "Metallica - M72 World Tour",
			Date:        time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
			Time:        "20:30",
			Venue:       "Stadio Renato Dall'Ara",
			City:        "Bologna",
			Country:     models.CountryItaly,
			URL:         "https://www.ticketmaster.it/artist/metallica-tickets/1240",
			Source:      SourceName,
			Verified:    true,
			SupportActs: []string{"Gojira", "Knocked Loose"},
			TicketInfo:  "Fan Club Presale: May 27, 2025 | General Sale: May 30, 2025",
		},
		{
			ID:         "linkin_park_milano_2026_06_24",
			Artist:     "Linkin Park",
			Name:       "Linkin Park - From Zero World Tour (I-Days Milano)",
			Date:       time.Date(2026, 6, 24, 0, 0, 0, 0, time.UTC),
			Time:       "20:00",
			Venue:      "Ippodromo SNAI La Maura",
			City:       "Milano",
			Country:    models.CountryItaly,
			URL:        "https://www.ticketmaster.it/artist/linkin-park-tickets/10021",
			Source:     SourceName,
			Verified:   true,
			TicketInfo: "SOLD OUT - Was available via TicketMaster Italy",
		},
		{
			ID:         "linkin_park_florence_2026_06_26",
			Artist:     "Linkin Park",
			Name:       "Linkin Park - From Zero World Tour",
			Date:       time.Date(2026, 6, 26, 0, 0, 0, 0, time.UTC),
			Time:       "20:30",
			Venue:      "Ippodromo del Visarno",
			City:       "Firenze",
			Country:    models.CountryItaly,
			URL:        "https://www.ticketmaster.it/artist/linkin-park-tickets/10021",
			Source:     SourceName,
			Verified:   true,
			TicketInfo: "General Sale: June 6, 2025 at 9:00 AM",
		},
	}
}
