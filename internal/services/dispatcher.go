// Package services holds the notification dispatcher, the orchestration core
// that turns aggregated concert data into at-most-once user notifications.
package services

import (
	"context"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/messaging"
	"example.com/concertbot/internal/metrics"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/search"
	"example.com/concertbot/internal/sources/verified"
	"example.com/concertbot/internal/tracing"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// UserLister lists registered users
type UserLister interface {
	GetAllIDs(ctx context.Context) ([]int64, error)
}

// FavoriteLister lists a user's favorite bands
type FavoriteLister interface {
	ListByUser(ctx context.Context, userID int64) ([]string, error)
}

// NotificationLedger is the already-notified record
type NotificationLedger interface {
	HasNotified(ctx context.Context, userID int64, eventID string) (bool, error)
	MarkNotified(ctx context.Context, userID int64, eventID string) error
}

// ConcertSearcher finds concerts for an artist
type ConcertSearcher interface {
	Search(ctx context.Context, artist, countryCode string) ([]models.ConcertEvent, error)
}

// Dispatcher runs the periodic notification cycle. One user at a time, one
// batched message per user, a ledger mark before every send.
type Dispatcher struct {
	cfg       config.NotifierConfig
	users     UserLister
	favorites FavoriteLister
	ledger    NotificationLedger
	searcher  ConcertSearcher
	sender    messaging.Sender
	indexer   *search.NotificationIndexer
	tracer    tracing.Tracer
	collector *metrics.Collector
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. The indexer, tracer and collector may
// be nil; the corresponding concerns are skipped.
func NewDispatcher(
	cfg config.NotifierConfig,
	users UserLister,
	favorites FavoriteLister,
	ledger NotificationLedger,
	searcher ConcertSearcher,
	sender messaging.Sender,
	indexer *search.NotificationIndexer,
	tracer tracing.Tracer,
	collector *metrics.Collector,
) *Dispatcher {
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "IT"
	}
	if cfg.MaxPerMessage <= 0 {
		cfg.MaxPerMessage = 10
	}
	return &Dispatcher{
		cfg:       cfg,
		users:     users,
		favorites: favorites,
		ledger:    ledger,
		searcher:  searcher,
		sender:    sender,
		indexer:   indexer,
		tracer:    tracer,
		collector: collector,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunCycle walks every registered user sequentially, searches their favorite
// bands, and sends each user at most one message covering everything new. A
// user's failure never stops the cycle; a cancelled context does.
func (d *Dispatcher) RunCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	start := time.Now()

	txn := d.startTxn("notification-cycle")
	defer d.endTxn(txn)
	d.addAttr(txn, "cycle_id", cycleID)

	log.Info().Str("cycle_id", cycleID).Msg("Starting notification cycle")
	d.collector.IncCounter("dispatcher.cycles")

	userIDs, err := d.users.GetAllIDs(ctx)
	if err != nil {
		d.recordErr(txn, err)
		return errors.Wrap(err, "failed to list users for notification cycle")
	}

	notified := 0
	for i, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("cycle_id", cycleID).Msg("Notification cycle cancelled")
			return err
		}

		sent, err := d.notifyUser(ctx, cycleID, userID)
		if err != nil {
			d.collector.IncCounter("dispatcher.user_failures")
			d.recordErr(txn, err)
			log.Error().Err(err).
				Str("cycle_id", cycleID).
				Int64("user_id", userID).
				Msg("Failed to process user, continuing cycle")
		}
		if sent {
			notified++
		}

		// Pacing between users keeps the chat API happy on large user sets.
		if i < len(userIDs)-1 {
			if err := d.sleep(ctx, d.cfg.InterUserDelay); err != nil {
				return err
			}
		}
	}

	d.collector.SetGauge("dispatcher.last_cycle_users", int64(len(userIDs)))
	d.collector.ObserveDuration("dispatcher.cycle", time.Since(start))

	log.Info().
		Str("cycle_id", cycleID).
		Int("users", len(userIDs)).
		Int("notified", notified).
		Dur("elapsed", time.Since(start)).
		Msg("Notification cycle complete")
	return nil
}

// notifyUser collects the user's unseen concerts across all favorite bands
// and delivers them as one message. Every concert is marked in the ledger
// BEFORE the send: a delivery failure must never become a duplicate later.
func (d *Dispatcher) notifyUser(ctx context.Context, cycleID string, userID int64) (bool, error) {
	bands, err := d.favorites.ListByUser(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "failed to list favorite bands")
	}
	if len(bands) == 0 {
		return false, nil
	}

	var fresh []models.ConcertEvent
	for _, band := range bands {
		if len(fresh) >= d.cfg.MaxPerMessage {
			break
		}
		concerts, err := d.searcher.Search(ctx, band, d.cfg.DefaultCountry)
		if err != nil {
			log.Warn().Err(err).
				Int64("user_id", userID).
				Str("band", band).
				Msg("Concert search failed for band, skipping")
			continue
		}

		for _, concert := range concerts {
			// The cap bounds the batch before anything extra is marked, so
			// capped-out concerts stay unseen and surface next cycle.
			if len(fresh) >= d.cfg.MaxPerMessage {
				break
			}
			seen, err := d.ledger.HasNotified(ctx, userID, concert.ID)
			if err != nil {
				return false, errors.Wrap(err, "failed to check notification ledger")
			}
			if seen {
				continue
			}

			if err := d.ledger.MarkNotified(ctx, userID, concert.ID); err != nil {
				log.Error().Err(err).
					Int64("user_id", userID).
					Str("concert_id", concert.ID).
					Msg("Failed to mark concert as notified, withholding it")
				continue
			}
			fresh = append(fresh, concert)
		}
	}

	if len(fresh) == 0 {
		return false, nil
	}

	text := messaging.FormatConcertMessage(fresh)
	if err := d.sender.Send(ctx, userID, text); err != nil {
		// The ledger rows already exist; the concerts stay consumed. Losing
		// one message beats spamming the user on every retry.
		d.collector.IncCounter("dispatcher.send_failures")
		log.Error().Err(err).
			Int64("user_id", userID).
			Int("concerts", len(fresh)).
			Msg("Failed to deliver notification message")
		return false, nil
	}

	d.collector.AddCounter("dispatcher.notifications_sent", int64(len(fresh)))
	log.Info().
		Int64("user_id", userID).
		Int("concerts", len(fresh)).
		Msg("Notification delivered")

	for _, concert := range fresh {
		if err := d.indexer.IndexNotification(ctx, userID, cycleID, concert); err != nil {
			log.Warn().Err(err).
				Str("concert_id", concert.ID).
				Msg("Failed to index notification audit document")
		}
	}

	return true, nil
}

// SearchForUser is the interactive query path: it searches the user's
// favorite bands without touching the ledger, and substitutes a placeholder
// sample event for bands with nothing scheduled. Placeholder ids never reach
// the ledger because this path never marks anything.
func (d *Dispatcher) SearchForUser(ctx context.Context, userID int64) ([]models.ConcertEvent, error) {
	bands, err := d.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list favorite bands")
	}

	var results []models.ConcertEvent
	seen := make(map[string]bool)
	for _, band := range bands {
		concerts, err := d.searcher.Search(ctx, band, d.cfg.DefaultCountry)
		if err != nil {
			log.Warn().Err(err).Str("band", band).Msg("Concert search failed for band")
			continue
		}
		if len(concerts) == 0 {
			results = append(results, verified.SampleEvent(band))
			continue
		}
		for _, concert := range concerts {
			if seen[concert.ID] {
				continue
			}
			seen[concert.ID] = true
			results = append(results, concert)
		}
	}

	return results, nil
}

func (d *Dispatcher) startTxn(name string) *newrelic.Transaction {
	if d.tracer == nil {
		return nil
	}
	return d.tracer.StartTransaction(name)
}

func (d *Dispatcher) endTxn(txn *newrelic.Transaction) {
	if d.tracer == nil {
		return
	}
	d.tracer.EndTransaction(txn)
}

func (d *Dispatcher) addAttr(txn *newrelic.Transaction, key string, value interface{}) {
	if d.tracer == nil {
		return
	}
	d.tracer.AddAttribute(txn, key, value)
}

func (d *Dispatcher) recordErr(txn *newrelic.Transaction, err error) {
	if d.tracer == nil {
		return
	}
	d.tracer.RecordError(txn, err)
}
