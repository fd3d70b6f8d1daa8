package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nuru-rsvp/internal/config"
	"nuru-rsvp/internal/models"
	"nuru-rsvp/internal/storage"
	"nuru-rsvp/internal/whatsapp"
)

// Responder handles one inbound message end to end.
type Responder interface {
	HandleMessage(ctx context.Context, msg models.InboundMessage) error
}

// MessageSender delivers a text message, used by the admin invitation endpoint.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

// Server owns the HTTP surface: webhook verification and dispatch, the admin
// invitation endpoint, and the health check.
type Server struct {
	cfg       *config.Config
	responder Responder
	sender    MessageSender
	dedup     storage.DedupStore
	log       zerolog.Logger
	engine    *gin.Engine
}

// New assembles the router with CORS and rate-limit middleware. dedup may be
// nil, in which case every delivery is processed (stateless mode).
func New(cfg *config.Config, responder Responder, sender MessageSender, dedup storage.DedupStore, logger zerolog.Logger) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		responder: responder,
		sender:    sender,
		dedup:     dedup,
		log:       logger.With().Str("component", "server").Logger(),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"authorization", "x-client-info", "apikey", "content-type"},
		MaxAge:          12 * time.Hour,
	}))
	engine.Use(newRateLimiter(cfg.MaxRequestsPerMin, s.log).middleware())

	engine.GET("/webhook", s.verifyWebhook)
	engine.POST("/webhook", s.handleWebhook)
	engine.GET("/healthz", s.health)

	if cfg.AdminToken != "" {
		admin := engine.Group("/admin", s.adminAuth())
		admin.POST("/invitations", s.sendInvitation)
	}

	s.engine = engine
	return s
}

// Engine exposes the router for an http.Server or a test recorder.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// verifyWebhook answers the provider's subscription handshake: echo the
// challenge when the verify token matches, reject otherwise. Idempotent,
// no side effects.
func (s *Server) verifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == s.cfg.WhatsAppVerifyToken {
		s.log.Info().Msg("Webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	s.log.Warn().Str("mode", mode).Msg("Webhook verification rejected")
	c.String(http.StatusForbidden, "Forbidden")
}

// handleWebhook processes one provider delivery. Deliveries without a message
// payload are acknowledged and ignored. A body that fails to decode answers
// 500 with no WhatsApp reply; failures inside the responder degrade to an
// apologetic reply and the delivery is still acknowledged.
func (s *Server) handleWebhook(c *gin.Context) {
	if err := s.cfg.Validate(); err != nil {
		s.log.Error().Err(err).Msg("Refusing webhook traffic")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfigured"})
		return
	}

	var envelope whatsapp.WebhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		s.log.Error().Err(err).Msg("Failed to decode webhook envelope")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Processing failed"})
		return
	}

	msg, ok := envelope.FirstMessage()
	if !ok {
		// Status callback or read receipt. Not an error.
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if s.dedup != nil && msg.ID != "" {
		fresh, err := s.dedup.RecordInbound(c.Request.Context(), msg.ID, msg.From)
		if err != nil {
			s.log.Error().Err(err).Str("message_id", msg.ID).Msg("Dedup check failed, processing anyway")
		} else if !fresh {
			s.log.Debug().Str("message_id", msg.ID).Msg("Redelivered message ignored")
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}

	if err := s.responder.HandleMessage(c.Request.Context(), msg); err != nil {
		// Reply delivery is fire-and-forget; the delivery is still acked.
		s.log.Error().Err(err).Str("from", msg.From).Msg("Failed to deliver reply")
	}

	if s.dedup != nil && msg.ID != "" {
		if err := s.dedup.MarkProcessed(c.Request.Context(), msg.ID); err != nil {
			s.log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to mark message processed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// adminAuth guards the admin surface with a static bearer token.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+s.cfg.AdminToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

type inviteRequest struct {
	Phone string `json:"phone" binding:"required"`
	Name  string `json:"name" binding:"required"`
}

// sendInvitation sends the invitation message to a guest. Unlike the webhook
// path the caller has a channel for errors, so a failed send is surfaced.
func (s *Server) sendInvitation(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and name are required"})
		return
	}

	to := whatsapp.NormalizePhoneNumber(req.Phone)
	if err := s.sender.SendText(c.Request.Context(), to, invitationMessage(req.Name)); err != nil {
		s.log.Error().Err(err).Str("to", to).Msg("Failed to send invitation")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send invitation"})
		return
	}

	s.log.Info().Str("to", to).Msg("Invitation sent")
	c.JSON(http.StatusOK, gin.H{"status": "sent", "to": to})
}

func invitationMessage(name string) string {
	return fmt.Sprintf(
		"🎉 *You're invited!*\n\n"+
			"Dear %s,\n\n"+
			"You have an event invitation waiting for you.\n\n"+
			"Reply:\n"+
			"✅ *YES* to confirm your attendance\n"+
			"❌ *NO* to decline\n"+
			"📋 *DETAILS* for event information\n"+
			"❓ *HELP* for all commands",
		name,
	)
}
