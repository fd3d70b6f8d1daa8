package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nuru-rsvp/internal/config"
	"nuru-rsvp/internal/events"
	"nuru-rsvp/internal/handler"
	"nuru-rsvp/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResponder struct {
	handled []models.InboundMessage
	err     error
}

func (f *fakeResponder) HandleMessage(_ context.Context, msg models.InboundMessage) error {
	f.handled = append(f.handled, msg)
	return f.err
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

type sentMessage struct {
	to   string
	body string
}

func (f *fakeSender) SendText(_ context.Context, to, body string) error {
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return f.err
}

type fakeDedup struct {
	seen      map[string]bool
	processed []string
}

func (f *fakeDedup) RecordInbound(_ context.Context, messageID, _ string) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[messageID] {
		return false, nil
	}
	f.seen[messageID] = true
	return true, nil
}

func (f *fakeDedup) MarkProcessed(_ context.Context, messageID string) error {
	f.processed = append(f.processed, messageID)
	return nil
}

func (f *fakeDedup) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		AppPort:               "8080",
		Env:                   "test",
		WhatsAppAccessToken:   "token-123",
		WhatsAppPhoneNumberID: "1098765",
		WhatsAppVerifyToken:   "verify-secret",
		WhatsAppAPIBaseURL:    "http://graph.invalid",
		EventsAPIBaseURL:      "http://events.invalid",
		MaxRequestsPerMin:     10000,
	}
}

func messageEnvelope(from, body, messageID, profileName string) string {
	return fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "100",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"metadata": {"display_phone_number": "255711111111", "phone_number_id": "1098765"},
					"contacts": [{"profile": {"name": %q}, "wa_id": %q}],
					"messages": [{"from": %q, "id": %q, "timestamp": "1756300000", "type": "text", "text": {"body": %q}}]
				}
			}]
		}]
	}`, profileName, from, from, messageID, body)
}

const statusEnvelope = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "100",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "255711111111", "phone_number_id": "1098765"},
				"statuses": [{"id": "wamid.abc", "status": "delivered", "timestamp": "1756300000", "recipient_id": "255700000001"}]
			}
		}]
	}]
}`

func postWebhook(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestVerificationHandshake(t *testing.T) {
	srv := New(testConfig(), &fakeResponder{}, &fakeSender{}, nil, zerolog.Nop())

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"matching token", "hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=1158201444", http.StatusOK, "1158201444"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1158201444", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=verify-secret&hub.challenge=1158201444", http.StatusForbidden, ""},
		{"missing everything", "", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil)
			w := httptest.NewRecorder()
			srv.Engine().ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestMisconfiguredServerAnswers500(t *testing.T) {
	cfg := testConfig()
	cfg.WhatsAppAccessToken = ""
	responder := &fakeResponder{}
	srv := New(cfg, responder, &fakeSender{}, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), messageEnvelope("255700000001", "YES", "wamid.1", "Frank Mushi"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server misconfigured"}`, w.Body.String())
	assert.Empty(t, responder.handled)
}

func TestMalformedEnvelopeAnswers500(t *testing.T) {
	responder := &fakeResponder{}
	srv := New(testConfig(), responder, &fakeSender{}, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), "{not json")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Processing failed"}`, w.Body.String())
	assert.Empty(t, responder.handled)
}

func TestStatusCallbackAcknowledgedWithoutProcessing(t *testing.T) {
	responder := &fakeResponder{}
	srv := New(testConfig(), responder, &fakeSender{}, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), statusEnvelope)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Empty(t, responder.handled)
}

func TestMessageDispatchedToResponder(t *testing.T) {
	responder := &fakeResponder{}
	srv := New(testConfig(), responder, &fakeSender{}, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), messageEnvelope("255700000001", "YES", "wamid.1", "Frank Mushi"))

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, responder.handled, 1)
	assert.Equal(t, "255700000001", responder.handled[0].From)
	assert.Equal(t, "YES", responder.handled[0].Text)
	assert.Equal(t, "Frank Mushi", responder.handled[0].ProfileName)
}

func TestResponderErrorStillAcknowledged(t *testing.T) {
	responder := &fakeResponder{err: errors.New("send failed")}
	srv := New(testConfig(), responder, &fakeSender{}, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), messageEnvelope("255700000001", "YES", "wamid.1", "Frank Mushi"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRedeliveredMessageSuppressed(t *testing.T) {
	responder := &fakeResponder{}
	dedup := &fakeDedup{}
	srv := New(testConfig(), responder, &fakeSender{}, dedup, zerolog.Nop())

	envelope := messageEnvelope("255700000001", "YES", "wamid.dup", "Frank Mushi")
	first := postWebhook(srv.Engine(), envelope)
	second := postWebhook(srv.Engine(), envelope)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, responder.handled, 1)
	assert.Equal(t, []string{"wamid.dup"}, dedup.processed)
}

func TestEndToEndConfirm(t *testing.T) {
	eventsAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rsvp/lookup":
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"data":    map[string]string{"code": "ABC123", "event_id": "ev1", "guest_name": "Dr. John Okelo"},
			})
		case r.URL.Path == "/rsvp/ABC123/respond" && r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]any{"success": true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer eventsAPI.Close()

	sender := &fakeSender{}
	responder := handler.NewResponder(sender, events.NewClient(eventsAPI.URL, zerolog.Nop()), zerolog.Nop())
	srv := New(testConfig(), responder, sender, nil, zerolog.Nop())

	w := postWebhook(srv.Engine(), messageEnvelope("255700000001", "YES", "wamid.e2e", "johnny"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "255700000001", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "Dr. John")
	assert.Contains(t, sender.sent[0].body, "confirmed")
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(testConfig(), &fakeResponder{}, &fakeSender{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv := New(testConfig(), &fakeResponder{}, &fakeSender{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodOptions, "/webhook", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdminInvitation(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = "admin-secret"
	sender := &fakeSender{}
	srv := New(cfg, &fakeResponder{}, sender, nil, zerolog.Nop())

	post := func(token, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/invitations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		srv.Engine().ServeHTTP(w, req)
		return w
	}

	t.Run("requires token", func(t *testing.T) {
		w := post("", `{"phone":"0700000001","name":"Frank Mushi"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, sender.sent)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		w := post("admin-secret", `{"phone":"0700000001"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("sends normalized invitation", func(t *testing.T) {
		w := post("admin-secret", `{"phone":"0700000001","name":"Frank Mushi"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "255700000001", sender.sent[0].to)
		assert.Contains(t, sender.sent[0].body, "Frank Mushi")
		assert.Contains(t, sender.sent[0].body, "YES")
	})
}

func TestAdminInvitationSendFailure(t *testing.T) {
	cfg := testConfig()
	cfg.AdminToken = "admin-secret"
	sender := &fakeSender{err: errors.New("unreachable")}
	srv := New(cfg, &fakeResponder{}, sender, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/admin/invitations", strings.NewReader(`{"phone":"0700000001","name":"Frank Mushi"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin-secret")
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAdminSurfaceDisabledWithoutToken(t *testing.T) {
	srv := New(testConfig(), &fakeResponder{}, &fakeSender{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/admin/invitations", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
