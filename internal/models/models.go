package models

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// User represents a chat user registered with the service
type User struct {
	ID            int64          `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DisplayName   string         `json:"display_name"`
	FavoriteBands []FavoriteBand `gorm:"foreignKey:UserID" json:"-"`
}

// FavoriteBand is a (user, artist) subscription
type FavoriteBand struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_band" json:"user_id"`
	BandName  string    `gorm:"not null;uniqueIndex:idx_user_band" json:"band_name"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
}

// ConcertNotification marks a concert as already delivered to a user.
// Rows are write-once; the (user_id, concert_id) pair is the dedup key.
type ConcertNotification struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     int64     `gorm:"not null;uniqueIndex:idx_user_concert" json:"user_id"`
	ConcertID  string    `gorm:"not null;uniqueIndex:idx_user_concert" json:"concert_id"`
	NotifiedAt time.Time `gorm:"autoCreateTime" json:"notified_at"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&User{},
		&FavoriteBand{},
		&ConcertNotification{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
