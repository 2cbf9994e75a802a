package handlers

import (
	"net/http"
	"strconv"

	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/repositories"
	"example.com/concertbot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// FavoritesHandler handles favorite-band subscription requests
type FavoritesHandler struct {
	users     *repositories.UserRepository
	favorites *repositories.FavoriteRepository
	tracer    tracing.Tracer
}

// NewFavoritesHandler creates a new favorites handler
func NewFavoritesHandler(users *repositories.UserRepository, favorites *repositories.FavoriteRepository, tracer tracing.Tracer) *FavoritesHandler {
	return &FavoritesHandler{
		users:     users,
		favorites: favorites,
		tracer:    tracer,
	}
}

// RegisterRoutes registers the favorites routes
func (h *FavoritesHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/users/:id/favorites", h.AddFavorite)
	router.DELETE("/users/:id/favorites/:band", h.RemoveFavorite)
	router.GET("/users/:id/favorites", h.ListFavorites)
}

// AddFavoriteRequest is the body for subscribing a user to a band
type AddFavoriteRequest struct {
	BandName    string `json:"band_name" binding:"required"`
	DisplayName string `json:"display_name"`
}

// AddFavorite subscribes a user to a band, registering the user on first
// contact. Re-adding an existing favorite succeeds without side effects.
func (h *FavoritesHandler) AddFavorite(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-add-favorite")
	defer h.tracer.EndTransaction(txn)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "band_name is required"})
		return
	}

	h.tracer.AddAttribute(txn, "user_id", userID)
	h.tracer.AddAttribute(txn, "band", req.BandName)

	if err := h.users.Upsert(c, &models.User{ID: userID, DisplayName: req.DisplayName}); err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to upsert user")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	added, err := h.favorites.Add(c, userID, req.BandName)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("band", req.BandName).
			Msg("Failed to add favorite band")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"band_name": req.BandName, "added": added})
}

// RemoveFavorite unsubscribes a user from a band
func (h *FavoritesHandler) RemoveFavorite(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-remove-favorite")
	defer h.tracer.EndTransaction(txn)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	band := c.Param("band")

	removed, err := h.favorites.Remove(c, userID, band)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Str("band", band).
			Msg("Failed to remove favorite band")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "favorite not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"band_name": band, "removed": true})
}

// ListFavorites returns a user's favorite bands
func (h *FavoritesHandler) ListFavorites(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	bands, err := h.favorites.ListByUser(c, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list favorite bands")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if bands == nil {
		bands = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "favorites": bands})
}

func parseUserID(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}
