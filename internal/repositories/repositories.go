package repositories

import (
	"context"

	"example.com/concertbot/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository provides access to user data
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert registers a user, updating the display name on repeat interactions
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "updated_at"}),
		}).
		Create(user).Error
	if err != nil {
		return errors.Wrap(err, "failed to upsert user")
	}
	return nil
}

// GetAllIDs returns the ids of every registered user
func (r *UserRepository) GetAllIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list user ids")
	}
	return ids, nil
}

// FavoriteRepository provides access to favorite-band subscriptions
type FavoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add subscribes a user to a band. Returns false when the subscription
// already existed.
func (r *FavoriteRepository) Add(ctx context.Context, userID int64, bandName string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.FavoriteBand{UserID: userID, BandName: bandName})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to add favorite band")
	}
	return result.RowsAffected > 0, nil
}

// Remove unsubscribes a user from a band. Returns false when there was no
// such subscription.
func (r *FavoriteRepository) Remove(ctx context.Context, userID int64, bandName string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND band_name = ?", userID, bandName).
		Delete(&models.FavoriteBand{})
	if result.Error != nil {
		return false, errors.Wrap(result.Error, "failed to remove favorite band")
	}
	return result.RowsAffected > 0, nil
}

// ListByUser returns a user's favorite bands in alphabetical order
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]string, error) {
	var bands []string
	err := r.db.WithContext(ctx).
		Model(&models.FavoriteBand{}).
		Where("user_id = ?", userID).
		Order("band_name").
		Pluck("band_name", &bands).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list favorite bands")
	}
	return bands, nil
}
