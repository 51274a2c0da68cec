// Package delivery sends rendered reminder messages to patients over SMS,
// WhatsApp, e-mail and push.
package delivery

import (
	"context"
	"fmt"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/apperror"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

// Sender delivers one message to one address and returns the provider's message id
type Sender interface {
	Send(ctx context.Context, address, message string) (string, error)
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, address, message string) (string, error)

// Send calls f
func (f SenderFunc) Send(ctx context.Context, address, message string) (string, error) {
	return f(ctx, address, message)
}

// Router picks the sender registered for a channel
type Router struct {
	senders map[model.Channel]Sender
	logger  *zap.Logger
}

// NewRouter creates a Router with no channels configured
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		senders: make(map[model.Channel]Sender),
		logger:  logger,
	}
}

// Register sets the sender used for channel
func (r *Router) Register(channel model.Channel, sender Sender) {
	r.senders[channel] = sender
	r.logger.Info("delivery channel registered", zap.String("channel", string(channel)))
}

// Channels returns the channels that have a sender
func (r *Router) Channels() []model.Channel {
	channels := make([]model.Channel, 0, len(r.senders))
	for _, c := range model.AllChannels() {
		if _, ok := r.senders[c]; ok {
			channels = append(channels, c)
		}
	}
	return channels
}

// Send delivers message through the sender registered for channel
func (r *Router) Send(ctx context.Context, channel model.Channel, address, message string) (string, error) {
	sender, ok := r.senders[channel]
	if !ok {
		return "", apperror.Delivery(fmt.Sprintf("no sender configured for channel %s", channel), nil)
	}
	if address == "" {
		return "", apperror.Delivery(fmt.Sprintf("empty %s address", channel), nil)
	}

	providerID, err := sender.Send(ctx, address, message)
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeDelivery {
			return "", err
		}
		return "", apperror.Delivery(fmt.Sprintf("%s delivery failed", channel), err)
	}
	return providerID, nil
}
