// Package ticketing queries a remote discovery-style ticket search API and
// normalizes its events. Concert announcements can land far ahead, so
// searches run over a long forward window, with progressively broader
// fallback queries when the strict one comes back empty.
package ticketing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/sources"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// SourceName tags events produced by this adapter
const SourceName = "TicketingAPI"

var errRateLimited = errors.New("rate limited by ticketing API")

// Client is the live ticketing API source. Each instance owns its HTTP
// client, request pacer and circuit breaker; nothing is shared globally.
type Client struct {
	cfg        config.TicketingConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	now        func() time.Time
}

// NewClient creates a ticketing API client
func NewClient(cfg config.TicketingConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestSpacing == 0 {
		cfg.RequestSpacing = 200 * time.Millisecond
	}
	if cfg.WindowDays == 0 {
		cfg.WindowDays = 730
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = 20
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "ticketing-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestSpacing), 1),
		breaker:    breaker,
		now:        time.Now,
	}
}

// Name implements sources.Source
func (c *Client) Name() string { return SourceName }

// Search runs the fallback query ladder for an artist: strict keyword query
// first, then progressively relaxed ones. Each step runs only when the
// previous one parsed zero events; the first step with results wins.
func (c *Client) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	windowStart := c.now().UTC()
	windowEnd := windowStart.AddDate(0, 0, c.cfg.WindowDays)

	baseParams := func() url.Values {
		p := url.Values{}
		p.Set("keyword", artist)
		p.Set("countryCode", countryCode)
		p.Set("size", fmt.Sprintf("%d", c.cfg.PageSize))
		p.Set("sort", "date,asc")
		return p
	}
	withWindow := func(p url.Values) url.Values {
		p.Set("startDateTime", windowStart.Format("2006-01-02T15:04:05Z"))
		p.Set("endDateTime", windowEnd.Format("2006-01-02T15:04:05Z"))
		return p
	}

	strategies := []struct {
		name   string
		params func() (url.Values, error)
	}{
		{"keyword+classification+window", func() (url.Values, error) {
			p := withWindow(baseParams())
			p.Set("classificationName", "music")
			return p, nil
		}},
		{"keyword+window", func() (url.Values, error) {
			return withWindow(baseParams()), nil
		}},
		{"keyword-broad", func() (url.Values, error) {
			return baseParams(), nil
		}},
		{"attraction-id", func() (url.Values, error) {
			attractionID, err := c.lookupAttractionID(ctx, artist)
			if err != nil {
				return nil, err
			}
			if attractionID == "" {
				return nil, nil
			}
			p := withWindow(url.Values{})
			p.Set("attractionId", attractionID)
			p.Set("countryCode", countryCode)
			p.Set("size", fmt.Sprintf("%d", c.cfg.PageSize))
			return p, nil
		}},
	}

	for _, strategy := range strategies {
		params, err := strategy.params()
		if err != nil {
			return nil, err
		}
		if params == nil {
			continue
		}

		concerts, err := c.searchEvents(ctx, artist, params)
		if err != nil {
			if errors.Is(err, errRateLimited) {
				// The provider throttled us past the single retry; treat the
				// call as empty rather than a source failure.
				log.Warn().Str("artist", artist).Msg("Ticketing API rate limit exhausted, returning empty")
				return nil, nil
			}
			return nil, errors.Wrapf(sources.ErrSourceUnavailable, "ticketing search (%s): %v", strategy.name, err)
		}

		if len(concerts) > 0 {
			log.Info().
				Str("artist", artist).
				Str("strategy", strategy.name).
				Int("concerts", len(concerts)).
				Msg("Ticketing API search succeeded")
			return concerts, nil
		}
		log.Debug().Str("artist", artist).Str("strategy", strategy.name).
			Msg("No ticketing API results for strategy")
	}

	return nil, nil
}

func (c *Client) searchEvents(ctx context.Context, artist string, params url.Values) ([]models.ConcertEvent, error) {
	body, err := c.makeRequest(ctx, "events.json", params)
	if err != nil {
		return nil, err
	}

	var response eventsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to decode events response")
	}

	var concerts []models.ConcertEvent
	for _, payload := range response.Embedded.Events {
		concert, ok := parseEvent(payload, artist)
		if !ok {
			// Malformed or partial payloads are skipped individually,
			// never escalated to a whole-call failure.
			log.Debug().Str("event_id", payload.ID).Msg("Skipping unparseable ticketing event")
			continue
		}
		concerts = append(concerts, concert)
	}

	return concerts, nil
}

// lookupAttractionID resolves an artist name to the provider's stable
// attraction identifier
func (c *Client) lookupAttractionID(ctx context.Context, artist string) (string, error) {
	params := url.Values{}
	params.Set("keyword", artist)
	params.Set("size", "1")

	body, err := c.makeRequest(ctx, "attractions.json", params)
	if err != nil {
		if errors.Is(err, errRateLimited) {
			return "", nil
		}
		return "", errors.Wrapf(sources.ErrSourceUnavailable, "attraction lookup: %v", err)
	}

	var response attractionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrapf(sources.ErrSourceUnavailable, "attraction decode: %v", err)
	}

	if len(response.Embedded.Attractions) == 0 {
		return "", nil
	}
	return response.Embedded.Attractions[0].ID, nil
}

// makeRequest performs one paced, breaker-guarded API call. A provider 429
// waits one second and retries exactly once before giving up.
func (c *Client) makeRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params.Set("apikey", c.cfg.APIKey)
	requestURL := fmt.Sprintf("%s/%s?%s", c.cfg.BaseURL, endpoint, params.Encode())

	return c.breaker.Execute(func() ([]byte, error) {
		body, status, err := c.doGet(ctx, requestURL)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests {
			log.Warn().Str("endpoint", endpoint).Msg("Rate limited by ticketing API, backing off")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			body, status, err = c.doGet(ctx, requestURL)
			if err != nil {
				return nil, err
			}
			if status == http.StatusTooManyRequests {
				return nil, errRateLimited
			}
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("ticketing API status %d", status)
		}
		return body, nil
	})
}

func (c *Client) doGet(ctx context.Context, requestURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

type eventsResponse struct {
	Embedded struct {
		Events []eventPayload `json:"events"`
	} `json:"_embedded"`
}

type eventPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			LocalDate string `json:"localDate"`
			LocalTime string `json:"localTime"`
		} `json:"start"`
	} `json:"dates"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			Country struct {
				Name string `json:"name"`
			} `json:"country"`
		} `json:"venues"`
	} `json:"_embedded"`
	PriceRanges []struct {
		Min      float64 `json:"min"`
		Max      float64 `json:"max"`
		Currency string  `json:"currency"`
	} `json:"priceRanges"`
}

type attractionsResponse struct {
	Embedded struct {
		Attractions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"attractions"`
	} `json:"_embedded"`
}

// parseEvent normalizes one provider event. Events without a stable id or a
// parseable date are rejected; they cannot satisfy the dedup contract.
func parseEvent(payload eventPayload, artist string) (models.ConcertEvent, bool) {
	if payload.ID == "" {
		return models.ConcertEvent{}, false
	}

	date, err := time.Parse("2006-01-02", payload.Dates.Start.LocalDate)
	if err != nil {
		return models.ConcertEvent{}, false
	}

	concert := models.ConcertEvent{
		ID:       payload.ID,
		Artist:   artist,
		Name:     payload.Name,
		Date:     date,
		Time:     payload.Dates.Start.LocalTime,
		Venue:    "Unknown Venue",
		City:     "Unknown City",
		Country:  models.CountryItaly,
		URL:      payload.URL,
		Source:   SourceName,
		Verified: true,
	}
	if concert.Name == "" {
		concert.Name = "Unknown Event"
	}

	if len(payload.Embedded.Venues) > 0 {
		venue := payload.Embedded.Venues[0]
		if venue.Name != "" {
			concert.Venue = venue.Name
		}
		if venue.City.Name != "" {
			concert.City = venue.City.Name
		}
		if venue.Country.Name != "" {
			concert.Country = venue.Country.Name
		}
	}

	if len(payload.PriceRanges) > 0 {
		pr := payload.PriceRanges[0]
		currency := pr.Currency
		if currency == "" {
			currency = "EUR"
		}
		switch {
		case pr.Min > 0 && pr.Max > 0:
			concert.PriceRange = fmt.Sprintf("%g-%g %s", pr.Min, pr.Max, currency)
		case pr.Min > 0:
			concert.PriceRange = fmt.Sprintf("From %g %s", pr.Min, currency)
		}
	}

	return concert, true
}
