package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/service"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's request signature
const SignatureHeader = "X-Twilio-Signature"

// emptyTwiML acknowledges an inbound message without replying to it
const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// InboundCorrelator handles inbound patient replies
type InboundCorrelator interface {
	HandleInbound(ctx context.Context, from, text string) (*service.CorrelationResult, error)
}

// SignatureVerifier checks provider webhook signatures
type SignatureVerifier interface {
	Verify(fullURL, signature string, form url.Values) bool
}

// DeliveryStatusForm is a provider status callback
type DeliveryStatusForm struct {
	MessageSid    string `form:"MessageSid" binding:"required"`
	MessageStatus string `form:"MessageStatus" binding:"required"`
	ErrorCode     string `form:"ErrorCode"`
}

// InboundMessageForm is an inbound message from a patient
type InboundMessageForm struct {
	From string `form:"From" binding:"required"`
	Body string `form:"Body"`
}

// WebhookHandler receives delivery provider callbacks
type WebhookHandler struct {
	reminders  ReminderService
	correlator InboundCorrelator
	verifier   SignatureVerifier
	publicURL  string
	logger     *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler. A nil verifier disables
// signature checks; publicURL is the externally visible base URL the
// provider signs requests against.
func NewWebhookHandler(reminders ReminderService, correlator InboundCorrelator, verifier SignatureVerifier, publicURL string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reminders:  reminders,
		correlator: correlator,
		verifier:   verifier,
		publicURL:  strings.TrimRight(publicURL, "/"),
		logger:     logger,
	}
}

// PostWebhooksDeliveryStatus applies a delivery status callback
func (h *WebhookHandler) PostWebhooksDeliveryStatus(c *gin.Context) {
	if !h.verify(c) {
		return
	}

	var form DeliveryStatusForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	reminder, err := h.reminders.ApplyDeliveryStatus(c.Request.Context(), form.MessageSid, form.MessageStatus, form.ErrorCode)
	if err != nil {
		respondError(c, h.logger, "apply delivery status", err,
			zap.String("provider_message_id", form.MessageSid),
			zap.String("status", form.MessageStatus),
		)
		return
	}

	resp := gin.H{"status": "ok"}
	if reminder != nil {
		resp["reminder_id"] = reminder.ID
		resp["reminder_status"] = reminder.Status
	}
	c.JSON(http.StatusOK, resp)
}

// PostWebhooksInbound correlates an inbound reply with the reminder it answers
func (h *WebhookHandler) PostWebhooksInbound(c *gin.Context) {
	if !h.verify(c) {
		return
	}

	var form InboundMessageForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindError(c, h.logger, err)
		return
	}

	result, err := h.correlator.HandleInbound(c.Request.Context(), form.From, form.Body)
	if err != nil {
		respondError(c, h.logger, "handle inbound message", err)
		return
	}

	fields := []zap.Field{
		zap.Bool("matched", result.Matched),
		zap.String("class", string(result.Class)),
	}
	if result.Reminder != nil {
		fields = append(fields, zap.String("reminder_id", result.Reminder.ID))
	}
	h.logger.Info("inbound message handled", fields...)

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}

// verify rejects the request with 403 when its signature is invalid
func (h *WebhookHandler) verify(c *gin.Context) bool {
	if h.verifier == nil {
		return true
	}

	if err := c.Request.ParseForm(); err != nil {
		respondBindError(c, h.logger, err)
		return false
	}

	fullURL := h.publicURL + c.Request.URL.RequestURI()
	if h.verifier.Verify(fullURL, c.GetHeader(SignatureHeader), c.Request.PostForm) {
		return true
	}

	h.logger.Warn("webhook signature rejected",
		zap.String("path", c.Request.URL.Path),
		zap.String("ip", c.ClientIP()),
	)
	c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
		Code:    string(apperror.CodeValidation),
		Message: "Invalid webhook signature",
	})
	return false
}
