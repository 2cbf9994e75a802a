package ticketing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"example.com/concertbot/config"

	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	c := NewClient(config.TicketingConfig{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Timeout:        2 * time.Second,
		RequestSpacing: time.Millisecond,
		WindowDays:     730,
		PageSize:       20,
	})
	c.now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	return c
}

const eventJSON = `{
	"_embedded": {
		"events": [
			{
				"id": "evt-1",
				"name": "Metallica - M72 World Tour",
				"url": "https://tickets.example/evt-1",
				"dates": {"start": {"localDate": "2026-06-03", "localTime": "20:30"}},
				"_embedded": {
					"venues": [
						{
							"name": "Stadio Renato Dall'Ara",
							"city": {"name": "Bologna"},
							"country": {"name": "Italy"}
						}
					]
				},
				"priceRanges": [{"min": 80, "max": 150, "currency": "EUR"}]
			},
			{
				"id": "evt-no-date",
				"name": "Broken payload",
				"dates": {"start": {"localDate": "not-a-date"}}
			},
			{
				"id": "",
				"name": "Missing id",
				"dates": {"start": {"localDate": "2026-06-04"}}
			}
		]
	}
}`

func TestSearchParsesEventsAndSkipsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(eventJSON))
	}))
	defer server.Close()

	client := testClient(server.URL)
	concerts, err := client.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)

	concert := concerts[0]
	require.Equal(t, "evt-1", concert.ID)
	require.Equal(t, "Metallica", concert.Artist)
	require.Equal(t, "Bologna", concert.City)
	require.Equal(t, "Italy", concert.Country)
	require.Equal(t, "20:30", concert.Time)
	require.Equal(t, "80-150 EUR", concert.PriceRange)
	require.Equal(t, SourceName, concert.Source)
	require.True(t, concert.Verified)
}

func TestSearchFallbackLadder(t *testing.T) {
	var queries []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{
			"path":               r.URL.Path,
			"classificationName": r.URL.Query().Get("classificationName"),
			"startDateTime":      r.URL.Query().Get("startDateTime"),
			"attractionId":       r.URL.Query().Get("attractionId"),
		}
		queries = append(queries, q)

		switch {
		case r.URL.Path == "/attractions.json":
			w.Write([]byte(`{"_embedded": {"attractions": [{"id": "attr-42", "name": "Metallica"}]}}`))
		case r.URL.Query().Get("attractionId") == "attr-42":
			w.Write([]byte(eventJSON))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	client := testClient(server.URL)
	concerts, err := client.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)

	// Strict query, relaxed query, broad query, attraction lookup, requery.
	require.Len(t, queries, 5)
	require.Equal(t, "music", queries[0]["classificationName"])
	require.NotEmpty(t, queries[0]["startDateTime"])
	require.Empty(t, queries[1]["classificationName"])
	require.NotEmpty(t, queries[1]["startDateTime"])
	require.Empty(t, queries[2]["startDateTime"])
	require.Equal(t, "/attractions.json", queries[3]["path"])
	require.Equal(t, "attr-42", queries[4]["attractionId"])
}

func TestSearchStopsAtFirstStrategyWithResults(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(eventJSON))
	}))
	defer server.Close()

	client := testClient(server.URL)
	concerts, err := client.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRateLimitRetriesOnceThenReturnsEmpty(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := testClient(server.URL)
	concerts, err := client.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Empty(t, concerts)
	// One attempt plus exactly one retry, then the ladder is abandoned.
	require.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimitRecoversOnRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(eventJSON))
	}))
	defer server.Close()

	client := testClient(server.URL)
	concerts, err := client.Search(context.Background(), "Metallica", "IT")
	require.NoError(t, err)
	require.Len(t, concerts, 1)
}

func TestServerErrorSurfacesAsSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Search(context.Background(), "Metallica", "IT")
	require.Error(t, err)
}
