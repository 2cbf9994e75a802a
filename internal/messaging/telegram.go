// Package messaging delivers notifications to users over Telegram.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example.com/concertbot/config"
	"example.com/concertbot/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Sender delivers one text message to one user.
type Sender interface {
	Send(ctx context.Context, userID int64, text string) error
}

// TelegramSender sends messages through the Telegram Bot API.
type TelegramSender struct {
	botToken   string
	baseURL    string
	httpClient *http.Client
}

// NewTelegramSender creates a Telegram sender
func NewTelegramSender(cfg config.TelegramConfig) *TelegramSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TelegramSender{
		botToken:   cfg.BotToken,
		baseURL:    "https://api.telegram.org",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers a message to a chat. Telegram-side rejections (blocked bot,
// deleted chat) surface as errors so the caller can log per user.
func (s *TelegramSender) Send(ctx context.Context, userID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                userID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode telegram message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to call telegram API")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read telegram response")
	}

	var result sendMessageResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return errors.Wrapf(err, "unexpected telegram response (status %d)", resp.StatusCode)
	}
	if !result.OK {
		return errors.Errorf("telegram rejected message: %s", result.Description)
	}

	log.Debug().Int64("user_id", userID).Msg("Telegram message delivered")
	return nil
}

// FormatConcertMessage renders one batched notification for a user. All
// concerts found in a cycle go into a single message.
func FormatConcertMessage(concerts []models.ConcertEvent) string {
	if len(concerts) == 0 {
		return ""
	}

	var b strings.Builder
	if len(concerts) == 1 {
		b.WriteString("🎸 <b>Nuovo concerto in Italia!</b>\n\n")
	} else {
		fmt.Fprintf(&b, "🎸 <b>%d nuovi concerti in Italia!</b>\n\n", len(concerts))
	}

	for i, concert := range concerts {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "🎵 <b>%s</b>\n", concert.Name)
		fmt.Fprintf(&b, "📅 %s", concert.Date.Format("02/01/2006"))
		if concert.Time != "" {
			fmt.Fprintf(&b, " alle %s", concert.Time)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "📍 %s, %s\n", concert.Venue, concert.City)

		if len(concert.SupportActs) > 0 {
			fmt.Fprintf(&b, "🤝 Con: %s\n", strings.Join(concert.SupportActs, ", "))
		}
		if concert.PriceRange != "" {
			fmt.Fprintf(&b, "💶 %s\n", concert.PriceRange)
		}

		if concert.Verified && concert.URL != "" {
			fmt.Fprintf(&b, "🎟 <a href=\"%s\">Biglietti</a>\n", concert.URL)
		} else if !concert.Verified {
			b.WriteString("⚠️ Data non ancora confermata dall'artista\n")
		}
		if concert.TicketInfo != "" {
			fmt.Fprintf(&b, "ℹ️ %s\n", concert.TicketInfo)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
