package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/concertbot/internal/models"

	"github.com/stretchr/testify/require"
)

func concertFixture() models.ConcertEvent {
	return models.ConcertEvent{
		ID:       "metallica_bologna_2026_06_03",
		Artist:   "Metallica",
		Name:     "Metallica - M72 World Tour",
		Date:     time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
		Time:     "20:30",
		Venue:    "Stadio Renato Dall'Ara",
		City:     "Bologna",
		Country:  models.CountryItaly,
		URL:      "https://tickets.example/metallica",
		Verified: true,
	}
}

func TestFormatConcertMessageSingle(t *testing.T) {
	text := FormatConcertMessage([]models.ConcertEvent{concertFixture()})

	require.Contains(t, text, "Nuovo concerto in Italia")
	require.Contains(t, text, "Metallica - M72 World Tour")
	require.Contains(t, text, "03/06/2026")
	require.Contains(t, text, "alle 20:30")
	require.Contains(t, text, "Stadio Renato Dall'Ara, Bologna")
	require.Contains(t, text, `href="https://tickets.example/metallica"`)
}

func TestFormatConcertMessageMultiple(t *testing.T) {
	second := concertFixture()
	second.ID = "metallica_milano_2026_06_05"
	second.City = "Milano"

	text := FormatConcertMessage([]models.ConcertEvent{concertFixture(), second})
	require.Contains(t, text, "2 nuovi concerti in Italia")
	require.Contains(t, text, "Bologna")
	require.Contains(t, text, "Milano")
}

func TestFormatConcertMessageUnverified(t *testing.T) {
	concert := concertFixture()
	concert.Verified = false

	text := FormatConcertMessage([]models.ConcertEvent{concert})
	require.Contains(t, text, "non ancora confermata")
	require.NotContains(t, text, "href=")
}

func TestFormatConcertMessageEmpty(t *testing.T) {
	require.Empty(t, FormatConcertMessage(nil))
}

func TestSendDeliversMessage(t *testing.T) {
	var got sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	sender := &TelegramSender{
		botToken:   "test-token",
		baseURL:    server.URL,
		httpClient: server.Client(),
	}

	err := sender.Send(context.Background(), 42, "ciao")
	require.NoError(t, err)
	require.Equal(t, int64(42), got.ChatID)
	require.Equal(t, "ciao", got.Text)
	require.Equal(t, "HTML", got.ParseMode)
	require.True(t, got.DisableWebPagePreview)
}

func TestSendSurfacesTelegramRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok": false, "description": "bot was blocked by the user"}`))
	}))
	defer server.Close()

	sender := &TelegramSender{
		botToken:   "test-token",
		baseURL:    server.URL,
		httpClient: server.Client(),
	}

	err := sender.Send(context.Background(), 42, "ciao")
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked")
}
