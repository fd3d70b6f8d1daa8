// Package events wraps the Nuru Events API, the source of truth for guests,
// invitations and RSVP state.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"nuru-rsvp/internal/models"
)

// Client is a REST client for the Events API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// RespondResult is the outcome of an RSVP respond call.
type RespondResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// DetailsResult is the payload of an invitation details fetch.
type DetailsResult struct {
	Event      models.EventDetails `json:"event"`
	Invitation struct {
		RSVPStatus models.RSVPStatus `json:"rsvp_status"`
	} `json:"invitation"`
}

type lookupResponse struct {
	Success bool                `json:"success"`
	Data    *models.GuestLookup `json:"data"`
}

type respondResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type detailsResponse struct {
	Success bool           `json:"success"`
	Data    *DetailsResult `json:"data"`
}

// NewClient creates a new Events API client.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     logger.With().Str("component", "events").Logger(),
	}
}

// LookupGuest resolves a phone number to an active invitation. Any failure
// (network error, non-success response, missing data) yields nil: downstream
// handlers must treat absence as "no invitation found for this number", never
// as a transient error to retry.
func (c *Client) LookupGuest(ctx context.Context, phone string) *models.GuestLookup {
	endpoint := fmt.Sprintf("%s/rsvp/lookup?phone=%s", c.baseURL, url.QueryEscape(phone))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to build lookup request")
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("phone", phone).Msg("Guest lookup failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("phone", phone).Msg("Guest lookup returned non-success status")
		return nil
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.log.Error().Err(err).Str("phone", phone).Msg("Failed to decode lookup response")
		return nil
	}
	if !body.Success || body.Data == nil || body.Data.Code == "" {
		return nil
	}
	return body.Data
}

// Respond requests an RSVP status transition for the given invitation code.
// A non-success API answer is returned as a result, not an error; errors are
// reserved for transport failures.
func (c *Client) Respond(ctx context.Context, code string, status models.RSVPStatus) (*RespondResult, error) {
	payload, err := json.Marshal(map[string]models.RSVPStatus{"rsvp_status": status})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal respond request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/rsvp/%s/respond", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build respond request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call respond endpoint: %w", err)
	}
	defer resp.Body.Close()

	var body respondResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode respond response: %w", err)
	}
	return &RespondResult{Success: body.Success, Message: body.Message}, nil
}

// Details fetches the event snapshot and current RSVP status for an invitation.
// A nil result with a nil error means the API answered but had no usable data.
func (c *Client) Details(ctx context.Context, code string) (*DetailsResult, error) {
	endpoint := fmt.Sprintf("%s/rsvp/%s", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build details request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call details endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var body detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode details response: %w", err)
	}
	if !body.Success || body.Data == nil {
		return nil, nil
	}
	return body.Data, nil
}
