package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const whatsAppPrefix = "whatsapp:"

// messageCreator is the part of the Twilio REST API the sender uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioConfig holds the settings of one Twilio sender
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	From              string
	StatusCallbackURL string
	Timeout           time.Duration
}

// TwilioSender sends SMS or WhatsApp messages through Twilio
type TwilioSender struct {
	api            messageCreator
	from           string
	whatsApp       bool
	statusCallback string
	logger         *zap.Logger
}

// NewTwilioSMSSender creates a sender for plain SMS
func NewTwilioSMSSender(cfg TwilioConfig, logger *zap.Logger) (*TwilioSender, error) {
	return newTwilioSender(cfg, false, logger)
}

// NewTwilioWhatsAppSender creates a sender for WhatsApp. Addresses are
// prefixed with "whatsapp:" as Twilio expects.
func NewTwilioWhatsAppSender(cfg TwilioConfig, logger *zap.Logger) (*TwilioSender, error) {
	return newTwilioSender(cfg, true, logger)
}

func newTwilioSender(cfg TwilioConfig, whatsApp bool, logger *zap.Logger) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return newTwilioSenderWithAPI(client.Api, cfg.From, whatsApp, cfg.StatusCallbackURL, logger), nil
}

func newTwilioSenderWithAPI(api messageCreator, from string, whatsApp bool, statusCallback string, logger *zap.Logger) *TwilioSender {
	if whatsApp && !strings.HasPrefix(from, whatsAppPrefix) {
		from = whatsAppPrefix + from
	}
	return &TwilioSender{
		api:            api,
		from:           from,
		whatsApp:       whatsApp,
		statusCallback: statusCallback,
		logger:         logger,
	}
}

// Send creates one outbound message and returns its MessageSid
func (s *TwilioSender) Send(ctx context.Context, address, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	to := strings.TrimSpace(address)
	if s.whatsApp && !strings.HasPrefix(to, whatsAppPrefix) {
		to = whatsAppPrefix + to
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(message)
	if s.statusCallback != "" {
		params.SetStatusCallback(s.statusCallback)
	}

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		s.logger.Warn("twilio message create failed", zap.Error(err), zap.Bool("whatsapp", s.whatsApp))
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) {
			return "", fmt.Errorf("twilio error %d (http %d): %s", restErr.Code, restErr.Status, restErr.Message)
		}
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if resp == nil || resp.Sid == nil || *resp.Sid == "" {
		return "", fmt.Errorf("twilio returned no message sid")
	}

	s.logger.Debug("twilio message created",
		zap.String("provider_message_id", *resp.Sid),
		zap.Bool("whatsapp", s.whatsApp),
	)
	return *resp.Sid, nil
}

// SignatureVerifier checks the X-Twilio-Signature header of webhook requests
type SignatureVerifier struct {
	validator twilioclient.RequestValidator
}

// NewSignatureVerifier creates a verifier for the given auth token
func NewSignatureVerifier(authToken string) *SignatureVerifier {
	return &SignatureVerifier{validator: twilioclient.NewRequestValidator(authToken)}
}

// Verify reports whether signature matches the full request URL and posted form
func (v *SignatureVerifier) Verify(fullURL, signature string, form url.Values) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, vals := range form {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(fullURL, params, signature)
}
