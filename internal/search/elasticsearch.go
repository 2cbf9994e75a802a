// Package search indexes delivered notifications into Elasticsearch for
// ad-hoc inspection of what was sent, to whom, and when.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NotificationIndexer writes notification audit documents to Elasticsearch.
type NotificationIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewNotificationIndexer creates an indexer and verifies connectivity
func NewNotificationIndexer(cfg config.ElasticConfig) (*NotificationIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create elasticsearch client")
	}

	res, err := client.Info()
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to elasticsearch")
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, errors.Errorf("elasticsearch info returned %s", res.Status())
	}

	index := cfg.Index
	if index == "" {
		index = "concert-notifications"
	}

	log.Info().Str("url", cfg.URL).Str("index", index).Msg("Connected to Elasticsearch")
	return &NotificationIndexer{client: client, index: index}, nil
}

type notificationDocument struct {
	UserID     int64     `json:"user_id"`
	CycleID    string    `json:"cycle_id"`
	ConcertID  string    `json:"concert_id"`
	Artist     string    `json:"artist"`
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	Venue      string    `json:"venue"`
	City       string    `json:"city"`
	Source     string    `json:"source"`
	Verified   bool      `json:"verified"`
	NotifiedAt time.Time `json:"notified_at"`
}

// IndexNotification records one delivered concert notification. Indexing is
// best-effort audit data; callers log failures and move on.
func (n *NotificationIndexer) IndexNotification(ctx context.Context, userID int64, cycleID string, concert models.ConcertEvent) error {
	if n == nil {
		return nil
	}

	doc := notificationDocument{
		UserID:     userID,
		CycleID:    cycleID,
		ConcertID:  concert.ID,
		Artist:     concert.Artist,
		Name:       concert.Name,
		Date:       concert.Date,
		Venue:      concert.Venue,
		City:       concert.City,
		Source:     concert.Source,
		Verified:   concert.Verified,
		NotifiedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode notification document")
	}

	req := esapi.IndexRequest{
		Index:      n.index,
		DocumentID: fmt.Sprintf("%d_%s_%s", userID, cycleID, concert.ID),
		Body:       bytes.NewReader(payload),
	}

	res, err := req.Do(ctx, n.client)
	if err != nil {
		return errors.Wrap(err, "failed to index notification")
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.Errorf("elasticsearch indexing returned %s", res.Status())
	}

	return nil
}
