package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the Cloud API credentials for the sender.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	// BaseURL of the Graph API, e.g. https://graph.facebook.com/v21.0.
	BaseURL string
}

// Service sends text messages through the WhatsApp Cloud API.
type Service struct {
	cfg    *Config
	client *http.Client
	log    zerolog.Logger
}

// NewService creates a new WhatsApp Cloud API sender.
func NewService(cfg *Config, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    logger.With().Str("component", "whatsapp").Logger(),
	}
}

// SendText sends a simple text message to the given phone number.
// Delivery is fire-and-forget from the webhook's point of view: the caller may
// log a returned error but has no channel to surface it to the guest.
func (s *Service) SendText(ctx context.Context, to, body string) error {
	payload := SendMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             TextContent{Body: body},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(s.cfg.BaseURL, "/"), s.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call send endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.log.Error().
			Int("status", resp.StatusCode).
			Str("to", to).
			Str("response", string(respBody)).
			Msg("Send message rejected by Cloud API")
		return fmt.Errorf("send endpoint returned status %d", resp.StatusCode)
	}

	var sent SendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&sent); err == nil && len(sent.Messages) > 0 {
		s.log.Debug().Str("to", to).Str("message_id", sent.Messages[0].ID).Msg("Message sent")
	}
	return nil
}

// NormalizePhoneNumber normalizes phone numbers to the wa_id digit format the
// Cloud API expects. Handles Tanzanian numbers that start with 0 by converting
// to the 255 country code.
func NormalizePhoneNumber(phoneNumber string) string {
	for _, ch := range []string{"+", " ", "-", "(", ")"} {
		phoneNumber = strings.ReplaceAll(phoneNumber, ch, "")
	}

	// Local format: 07XXXXXXXX -> 2557XXXXXXXX
	if strings.HasPrefix(phoneNumber, "0") && len(phoneNumber) == 10 {
		phoneNumber = "255" + phoneNumber[1:]
	}

	// Country code followed by a stray trunk zero: 2550... -> 255...
	if strings.HasPrefix(phoneNumber, "2550") {
		phoneNumber = "255" + phoneNumber[4:]
	}

	return phoneNumber
}
