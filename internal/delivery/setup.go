package delivery

import (
	"fmt"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// NewRouterFromConfig registers a guarded sender for every channel whose
// provider settings are present
func NewRouterFromConfig(cfg config.DeliveryConfig, logger *zap.Logger) (*Router, error) {
	router := NewRouter(logger)

	guard := func(name string, s Sender) Sender {
		return NewGuardedSender(s, GuardConfig{
			Name:             name,
			Timeout:          cfg.SendTimeout,
			RateLimit:        cfg.RateLimit,
			RateBurst:        cfg.RateBurst,
			BreakerFailures:  cfg.BreakerFailures,
			BreakerOpenFor:   cfg.BreakerOpenFor,
			BreakerHalfOpens: cfg.BreakerHalfOpens,
		}, logger)
	}

	tw := cfg.Twilio
	if tw.SMSFrom != "" {
		s, err := NewTwilioSMSSender(TwilioConfig{
			AccountSID:        tw.AccountSID,
			AuthToken:         tw.AuthToken,
			From:              tw.SMSFrom,
			StatusCallbackURL: tw.StatusCallbackURL,
			Timeout:           cfg.SendTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create sms sender: %w", err)
		}
		router.Register(model.ChannelSMS, guard("twilio-sms", s))
	}
	if tw.WhatsAppFrom != "" {
		s, err := NewTwilioWhatsAppSender(TwilioConfig{
			AccountSID:        tw.AccountSID,
			AuthToken:         tw.AuthToken,
			From:              tw.WhatsAppFrom,
			StatusCallbackURL: tw.StatusCallbackURL,
			Timeout:           cfg.SendTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create whatsapp sender: %w", err)
		}
		router.Register(model.ChannelWhatsApp, guard("twilio-whatsapp", s))
	}

	if cfg.SMTP.Host != "" {
		s, err := NewEmailSender(EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create e-mail sender: %w", err)
		}
		router.Register(model.ChannelEmail, guard("smtp", s))
	}

	if cfg.Push.GatewayURL != "" {
		s, err := NewPushSender(PushConfig{
			GatewayURL: cfg.Push.GatewayURL,
			APIToken:   cfg.Push.APIToken,
			Timeout:    cfg.SendTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create push sender: %w", err)
		}
		router.Register(model.ChannelPush, guard("push", s))
	}

	if len(router.Channels()) == 0 {
		logger.Warn("no delivery channel configured; due reminders will fail")
	}

	return router, nil
}
