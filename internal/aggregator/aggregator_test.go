package aggregator

import (
	"context"
	"testing"
	"time"

	"example.com/concertbot/internal/metrics"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/sources"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	name     string
	concerts []models.ConcertEvent
	err      error
	calls    int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	s.calls++
	return s.concerts, s.err
}

var aggNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func futureEvent(id, source string) models.ConcertEvent {
	return models.ConcertEvent{
		ID:      id,
		Artist:  "Metallica",
		Name:    "Metallica Live",
		Date:    time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
		Country: models.CountryItaly,
		Source:  source,
	}
}

func newTestAggregator(srcs []sources.Source, opts ...Option) *Aggregator {
	opts = append(opts, WithClock(func() time.Time { return aggNow }))
	return New(srcs, opts...)
}

func TestSearchMergesSourcesInOrder(t *testing.T) {
	first := &stubSource{name: "first", concerts: []models.ConcertEvent{futureEvent("a", "first")}}
	second := &stubSource{name: "second", concerts: []models.ConcertEvent{futureEvent("b", "second")}}

	agg := newTestAggregator([]sources.Source{first, second})
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 2)
	require.Equal(t, "a", concerts[0].ID)
	require.Equal(t, "b", concerts[1].ID)
}

func TestSearchDeduplicatesFirstSeenWins(t *testing.T) {
	first := &stubSource{name: "first", concerts: []models.ConcertEvent{futureEvent("dup", "first")}}
	second := &stubSource{name: "second", concerts: []models.ConcertEvent{futureEvent("dup", "second")}}

	agg := newTestAggregator([]sources.Source{first, second})
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "first", concerts[0].Source)
}

func TestSearchIsolatesFailingSource(t *testing.T) {
	failing := &stubSource{name: "failing", err: errors.Wrap(sources.ErrSourceUnavailable, "boom")}
	healthy := &stubSource{name: "healthy", concerts: []models.ConcertEvent{futureEvent("a", "healthy")}}

	collector := metrics.NewCollector()
	agg := newTestAggregator([]sources.Source{failing, healthy}, WithMetrics(collector))

	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, int64(1), collector.Counter("aggregator.source_errors.failing"))
}

func TestSearchFiltersIneligibleEvents(t *testing.T) {
	past := futureEvent("past", "src")
	past.Date = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	foreign := futureEvent("foreign", "src")
	foreign.Country = "Germany"
	noID := futureEvent("", "src")

	src := &stubSource{name: "src", concerts: []models.ConcertEvent{
		past, foreign, noID, futureEvent("good", "src"),
	}}

	agg := newTestAggregator([]sources.Source{src})
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "good", concerts[0].ID)
}

func TestSearchCountryGate(t *testing.T) {
	src := &stubSource{name: "src", concerts: []models.ConcertEvent{futureEvent("a", "src")}}

	agg := newTestAggregator([]sources.Source{src})
	concerts, err := agg.Search(context.Background(), "Metallica", "US")
	require.NoError(t, err)
	require.Empty(t, concerts)
	require.Zero(t, src.calls)
}

func TestSearchFirstHitPolicyStopsEarly(t *testing.T) {
	first := &stubSource{name: "first", concerts: []models.ConcertEvent{futureEvent("a", "first")}}
	second := &stubSource{name: "second", concerts: []models.ConcertEvent{futureEvent("b", "second")}}

	agg := newTestAggregator([]sources.Source{first, second}, WithPolicy(PolicyFirstHit))
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Zero(t, second.calls)
}

func TestSearchFirstHitFallsThroughEmptySources(t *testing.T) {
	empty := &stubSource{name: "empty"}
	second := &stubSource{name: "second", concerts: []models.ConcertEvent{futureEvent("b", "second")}}

	agg := newTestAggregator([]sources.Source{empty, second}, WithPolicy(PolicyFirstHit))
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "b", concerts[0].ID)
}

type slowSource struct {
	name string
}

func (s *slowSource) Name() string { return s.name }

func (s *slowSource) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSearchBoundsSlowSources(t *testing.T) {
	slow := &slowSource{name: "slow"}
	healthy := &stubSource{name: "healthy", concerts: []models.ConcertEvent{futureEvent("a", "healthy")}}

	agg := newTestAggregator([]sources.Source{slow, healthy},
		WithPerSourceTimeout(10*time.Millisecond))

	// The hung source is cut off by its own timeout; the rest of the chain
	// still answers.
	concerts, err := agg.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, "a", concerts[0].ID)
}

func TestSearchCancelledContext(t *testing.T) {
	src := &stubSource{name: "src"}
	agg := newTestAggregator([]sources.Source{src})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agg.Search(ctx, "Metallica", "IT")
	require.ErrorIs(t, err, context.Canceled)
}
