// Package scraper mines official artist tour pages for Italian concert
// announcements. It only knows the artists in its allow-list; everything
// else resolves to an empty result.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/sources"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// ArtistPage maps an allow-listed artist to its official tour page and the
// ticket vendor page events should link to.
type ArtistPage struct {
	URL       string
	TicketURL string
}

// Config is injectable data: the artist allow-list and the Italian
// city/venue gazetteer. Adding an artist or a venue is a data change.
type Config struct {
	Pages   map[string]ArtistPage
	Cities  map[string]string
	Venues  map[string]string
	Timeout time.Duration
}

// Scraper is the official-site concert source.
type Scraper struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// New creates a scraper. Zero-value config fields fall back to the curated
// defaults.
func New(cfg Config) *Scraper {
	if cfg.Pages == nil {
		cfg.Pages = defaultPages()
	}
	if cfg.Cities == nil {
		cfg.Cities = defaultCities()
	}
	if cfg.Venues == nil {
		cfg.Venues = defaultVenues()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Scraper{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Name implements sources.Source
func (s *Scraper) Name() string { return "OfficialSite" }

// Search fetches the artist's official tour page and scans it for Italian
// dates. Artists outside the allow-list, unreachable pages and empty
// extractions all degrade to an empty result, never an error.
func (s *Scraper) Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error) {
	if !sources.IsItalyCode(countryCode) {
		return nil, nil
	}

	normalized := sources.NormalizeArtist(artist)
	page, ok := s.cfg.Pages[normalized]
	if !ok {
		log.Debug().Str("artist", artist).Msg("No official source configured for artist")
		return nil, nil
	}

	text, err := s.fetchPageText(ctx, page.URL)
	if err != nil {
		log.Warn().Err(err).Str("artist", artist).Str("url", page.URL).
			Msg("Failed to fetch official tour page")
		return nil, nil
	}
	if text == "" {
		log.Warn().Str("artist", artist).Str("url", page.URL).
			Msg("No content extracted from official tour page")
		return nil, nil
	}

	concerts := s.parseTourText(text, normalized, page)
	if len(concerts) > 0 {
		log.Info().Str("artist", artist).Int("concerts", len(concerts)).
			Msg("Found concerts on official site")
	}
	return concerts, nil
}

func (s *Scraper) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()
	body := doc.Find("body")
	if body.Length() > 0 {
		return body.Text(), nil
	}
	return doc.Text(), nil
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{1,2}[/\-.]\d{1,2}[/\-.]\d{4}`),   // DD/MM/YYYY
	regexp.MustCompile(`\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}`),   // YYYY-MM-DD
	regexp.MustCompile(`[a-zA-Z]+\s+\d{1,2},?\s+\d{4}`),     // Month DD, YYYY
	regexp.MustCompile(`\d{1,2}\s+[a-zA-Z]+\s+\d{4}`),       // DD Month YYYY
}

var dateLayouts = []string{
	"2/1/2006", "2-1-2006", "2.1.2006",
	"2006/1/2", "2006-1-2", "2006.1.2",
	"January 2, 2006", "January 2 2006",
	"2 January 2006",
	"Jan 2, 2006", "Jan 2 2006",
	"2 Jan 2006",
}

// parseTourText scans extracted page text line by line. A line counts as a
// concert mention only when it carries both an Italian city/venue token and
// a date token that parses to a future calendar date.
func (s *Scraper) parseTourText(text, artist string, page ArtistPage) []models.ConcertEvent {
	var concerts []models.ConcertEvent
	seen := make(map[string]bool)

	for _, rawLine := range strings.Split(strings.ToLower(text), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || !s.hasItalianToken(line) {
			continue
		}

		for _, pattern := range datePatterns {
			for _, dateStr := range pattern.FindAllString(line, -1) {
				date, ok := parseDate(dateStr)
				if !ok || !date.After(s.now()) {
					continue
				}

				city, venue := s.resolveVenue(line)
				id := concertID(artist, city, date)
				if seen[id] {
					continue
				}
				seen[id] = true

				concerts = append(concerts, models.ConcertEvent{
					ID:         id,
					Artist:     titleCase(artist),
					Name:       fmt.Sprintf("%s - Live in %s", titleCase(artist), city),
					Date:       date,
					Time:       "20:00",
					Venue:      venue,
					City:       city,
					Country:    models.CountryItaly,
					URL:        page.TicketURL,
					Source:     "OfficialSite:" + artist,
					Verified:   true,
					TicketInfo: "Tickets available via TicketMaster Italy",
				})
			}
		}
	}

	return concerts
}

func (s *Scraper) hasItalianToken(line string) bool {
	for token := range s.cfg.Cities {
		if strings.Contains(line, token) {
			return true
		}
	}
	for token := range s.cfg.Venues {
		if strings.Contains(line, token) {
			return true
		}
	}
	for _, token := range []string{"italy", "italia"} {
		if strings.Contains(line, token) {
			return true
		}
	}
	return false
}

// resolveVenue maps matched gazetteer tokens to canonical display names.
// A city indicator without an exact venue token falls back to Milano / TBA.
func (s *Scraper) resolveVenue(line string) (city, venue string) {
	city = "Milano"
	venue = "TBA"

	for token, canonical := range s.cfg.Cities {
		if strings.Contains(line, token) {
			city = canonical
			break
		}
	}
	for token, canonical := range s.cfg.Venues {
		if strings.Contains(line, token) {
			venue = canonical
			break
		}
	}
	return city, venue
}

// concertID builds the deterministic dedup key: repeated scrapes of an
// unchanged page must yield the same id.
func concertID(artist, city string, date time.Time) string {
	slug := func(v string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), " ", "_")
	}
	return fmt.Sprintf("%s_%s_%s", slug(artist), slug(city), date.Format("2006_01_02"))
}

func parseDate(raw string) (time.Time, bool) {
	candidates := []string{raw, capitalizeWords(raw)}
	for _, candidate := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// capitalizeWords uppercases the first letter of each word so lowercased
// month names parse against the standard layouts.
func capitalizeWords(v string) string {
	words := strings.Fields(v)
	for i, w := range words {
		if len(w) > 0 && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func titleCase(artist string) string {
	return capitalizeWords(artist)
}

// SupportedArtists returns the allow-listed artists
func (s *Scraper) SupportedArtists() []string {
	artists := make([]string, 0, len(s.cfg.Pages))
	for artist := range s.cfg.Pages {
		artists = append(artists, artist)
	}
	return artists
}

func defaultPages() map[string]ArtistPage {
	return map[string]ArtistPage{
		"metallica": {
			URL:       "https://www.metallica.com/events",
			TicketURL: "https://www.ticketmaster.it/artist/metallica-tickets/1240",
		},
		"green day": {
			URL:       "https://www.greenday.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/green-day-tickets/895",
		},
		"linkin park": {
			URL:       "https://www.linkinpark.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/linkin-park-tickets/1223",
		},
		"pearl jam": {
			URL:       "https://pearljam.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/pearl-jam-tickets/1156",
		},
		"coldplay": {
			URL:       "https://www.coldplay.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/coldplay-tickets/806",
		},
		"imagine dragons": {
			URL:       "https://www.imaginedragonsmusic.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/imagine-dragons-tickets/1503",
		},
		"u2": {
			URL:       "https://www.u2.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/u2-tickets/734",
		},
		"radiohead": {
			URL:       "https://www.radiohead.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/radiohead-tickets/928",
		},
		"arctic monkeys": {
			URL:       "https://www.arcticmonkeys.com/tour",
			TicketURL: "https://www.ticketmaster.it/artist/arctic-monkeys-tickets/1287",
		},
		"muse": {
			URL:       "https://www.muse.mu/tour",
			TicketURL: "https://www.ticketmaster.it/artist/muse-tickets/1043",
		},
	}
}

func defaultCities() map[string]string {
	return map[string]string{
		"milan": "Milano", "milano": "Milano",
		"rome": "Roma", "roma": "Roma",
		"bologna":  "Bologna",
		"florence": "Firenze", "firenze": "Firenze",
		"turin": "Torino", "torino": "Torino",
		"naples": "Napoli", "napoli": "Napoli",
		"venice": "Venezia", "venezia": "Venezia",
	}
}

func defaultVenues() map[string]string {
	return map[string]string{
		"san siro":             "Stadio San Siro",
		"stadio olimpico":      "Stadio Olimpico",
		"mediolanum forum":     "Mediolanum Forum",
		"unipol forum":         "Unipol Forum",
		"palazzo dello sport":  "Palazzo dello Sport",
		"visarno arena":        "Visarno Arena",
		"stadio renato dall":   "Stadio Renato Dall'Ara",
	}
}
