package handlers

import (
	"context"
	"net/http"
	"time"

	"example.com/concertbot/internal/aggregator"
	"example.com/concertbot/internal/models"
	"example.com/concertbot/internal/services"
	"example.com/concertbot/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ConcertsHandler handles concert search requests
type ConcertsHandler struct {
	dispatcher *services.Dispatcher
	aggregator *aggregator.Aggregator
	artists    []string
	tracer     tracing.Tracer
}

// NewConcertsHandler creates a new concerts handler
func NewConcertsHandler(dispatcher *services.Dispatcher, agg *aggregator.Aggregator, artists []string, tracer tracing.Tracer) *ConcertsHandler {
	return &ConcertsHandler{
		dispatcher: dispatcher,
		aggregator: agg,
		artists:    artists,
		tracer:     tracer,
	}
}

// RegisterRoutes registers the concert search routes
func (h *ConcertsHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/users/:id/concerts", h.UserConcerts)
	router.GET("/search", h.SearchArtist)
	router.GET("/artists", h.ListArtists)
	router.POST("/admin/cycle", h.TriggerCycle)
}

// ListArtists returns the artists the curated and scraped sources track
func (h *ConcertsHandler) ListArtists(c *gin.Context) {
	artists := h.artists
	if artists == nil {
		artists = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"artists": artists})
}

// UserConcerts returns upcoming concerts for all of a user's favorite bands.
// This is the interactive path; it never writes to the notification ledger.
func (h *ConcertsHandler) UserConcerts(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-user-concerts")
	defer h.tracer.EndTransaction(txn)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	h.tracer.AddAttribute(txn, "user_id", userID)

	concerts, err := h.dispatcher.SearchForUser(c, userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to search concerts for user")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if concerts == nil {
		concerts = []models.ConcertEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "concerts": concerts})
}

// SearchArtist returns upcoming Italian concerts for one artist
func (h *ConcertsHandler) SearchArtist(c *gin.Context) {
	txn := h.tracer.StartTransaction("api-search-artist")
	defer h.tracer.EndTransaction(txn)

	artist := c.Query("artist")
	if artist == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "artist query parameter is required"})
		return
	}
	h.tracer.AddAttribute(txn, "artist", artist)

	concerts, err := h.aggregator.Search(c, artist, "IT")
	if err != nil {
		log.Error().Err(err).Str("artist", artist).Msg("Artist search failed")
		h.tracer.RecordError(txn, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if concerts == nil {
		concerts = []models.ConcertEvent{}
	}

	c.JSON(http.StatusOK, gin.H{"artist": artist, "concerts": concerts})
}

// TriggerCycle kicks off one notification cycle out of schedule. The cycle
// runs in the background; the request returns as soon as it is started.
func (h *ConcertsHandler) TriggerCycle(c *gin.Context) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := h.dispatcher.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Manually triggered notification cycle failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}
