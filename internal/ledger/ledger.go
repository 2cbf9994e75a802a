// Package ledger tracks which concerts have already been delivered to which
// users, so repeat aggregation passes never produce repeat notifications.
package ledger

import (
	"context"
	"time"

	"example.com/concertbot/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the persistent already-notified record.
type Ledger struct {
	db *gorm.DB
}

// New creates a ledger backed by the given database
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// HasNotified reports whether the user was already notified about the event
func (l *Ledger) HasNotified(ctx context.Context, userID int64, eventID string) (bool, error) {
	var count int64
	err := l.db.WithContext(ctx).
		Model(&models.ConcertNotification{}).
		Where("user_id = ? AND concert_id = ?", userID, eventID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check notification ledger")
	}
	return count > 0, nil
}

// MarkNotified records a delivery. Marking the same (user, event) pair twice
// is a no-op, never an error.
func (l *Ledger) MarkNotified(ctx context.Context, userID int64, eventID string) error {
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ConcertNotification{
			UserID:    userID,
			ConcertID: eventID,
		}).Error
	if err != nil {
		return errors.Wrap(err, "failed to mark concert as notified")
	}
	return nil
}

// PurgeOlderThan removes ledger rows older than the retention window and
// returns how many were deleted. An event purged here becomes eligible for
// re-notification if a source surfaces it again.
func (l *Ledger) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := l.db.WithContext(ctx).
		Where("notified_at < ?", cutoff).
		Delete(&models.ConcertNotification{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to purge notification ledger")
	}

	if result.RowsAffected > 0 {
		log.Info().
			Int64("purged", result.RowsAffected).
			Int("retention_days", days).
			Msg("Purged old notification records")
	}

	return result.RowsAffected, nil
}
