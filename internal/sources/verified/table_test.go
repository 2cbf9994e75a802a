package verified

import (
	"context"
	"testing"
	"time"

	"example.com/concertbot/internal/models"

	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

func TestSearchExactMatch(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	concerts, err := table.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "metallica_bologna_2026_06_03", concerts[0].ID)
	require.Equal(t, "Bologna", concerts[0].City)
	require.True(t, concerts[0].Verified)
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	concerts, err := table.Search(context.Background(), "  LINKIN PARK  ", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 2)
}

func TestSearchFuzzyMatch(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	// A common misspelling still resolves through the fuzzy pass.
	concerts, err := table.Search(context.Background(), "Metalica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "Metallica", concerts[0].Artist)
}

func TestSearchFuzzySharedPrefix(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	// Shared prefix "metalli" is longer than 3 characters.
	concerts, err := table.Search(context.Background(), "Metallika", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "Metallica", concerts[0].Artist)

	// A 3-character shared prefix ("met") is not enough.
	concerts, err = table.Search(context.Background(), "Metro", "IT")
	require.NoError(t, err)
	require.Empty(t, concerts)
}

func TestSearchSubstringMatch(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	concerts, err := table.Search(context.Background(), "Linkin", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 2)
}

func TestSearchUnknownArtist(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	concerts, err := table.Search(context.Background(), "Nonexistent Band", "IT")
	require.NoError(t, err)
	require.Empty(t, concerts)
}

func TestSearchOutsideItaly(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	concerts, err := table.Search(context.Background(), "Metallica", "US")
	require.NoError(t, err)
	require.Empty(t, concerts)
}

func TestSearchFiltersPastConcerts(t *testing.T) {
	table := NewTable(
		WithClock(func() time.Time { return time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC) }),
	)

	concerts, err := table.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Empty(t, concerts)
}

func TestSearchIsDeterministic(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	first, err := table.Search(context.Background(), "Linkin Park", "IT")
	require.NoError(t, err)
	second, err := table.Search(context.Background(), "Linkin Park", "IT")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSearchCustomEntries(t *testing.T) {
	table := NewTable(
		WithClock(fixedClock),
		WithEntries([]models.ConcertEvent{
			{
				ID:      "iron_maiden_milano_2026_07_10",
				Artist:  "Iron Maiden",
				Name:    "Iron Maiden - Run For Your Lives",
				Date:    time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
				City:    "Milano",
				Country: models.CountryItaly,
			},
		}),
	)

	concerts, err := table.Search(context.Background(), "iron maiden", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)

	concerts, err = table.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Empty(t, concerts)
}

func TestArtists(t *testing.T) {
	table := NewTable(WithClock(fixedClock))

	artists := table.Artists()
	require.ElementsMatch(t, []string{"Metallica", "Linkin Park"}, artists)
}

func TestSampleEvent(t *testing.T) {
	event := SampleEvent("Pearl Jam")

	require.Equal(t, "sample_pearl_jam", event.ID)
	require.False(t, event.Verified)
	require.Equal(t, models.CountryItaly, event.Country)
	require.True(t, event.Date.After(time.Now()))
}
