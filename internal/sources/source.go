// Package sources defines the contract every concert data provider satisfies.
package sources

import (
	"context"
	"strings"

	"example.com/concertbot/internal/models"

	"github.com/pkg/errors"
)

// ErrSourceUnavailable marks a network or parse failure of a whole source
// call. An empty result is a legitimate outcome, not this error.
var ErrSourceUnavailable = errors.New("concert source unavailable")

// Source is one independent provider of concert data. Implementations must
// only return records satisfying the ConcertEvent invariants: a stable id,
// a parsed date, and Country set when claiming Italian eligibility.
type Source interface {
	Name() string
	Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error)
}

// NormalizeArtist normalizes an artist name for matching across sources
func NormalizeArtist(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsItalyCode reports whether a country code selects the Italian market
func IsItalyCode(countryCode string) bool {
	return strings.EqualFold(strings.TrimSpace(countryCode), "IT")
}
