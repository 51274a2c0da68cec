// Command send-test-reminder sends one message through a configured delivery
// channel to check provider credentials. It loads the same configuration as
// the server, so DATABASE_URL must be set, but it never connects to it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/config"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/internal/delivery"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
	"go.uber.org/zap"
)

func main() {
	channelFlag := flag.String("channel", "sms", "delivery channel: sms, whatsapp, email or push")
	to := flag.String("to", "", "recipient address for the channel")
	message := flag.String("message", "Test reminder: time to take your medication. Reply YES when taken.", "message text")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *to == "" {
		logger.Fatal("Missing recipient. Pass -to with a phone number, e-mail address or push token")
	}

	channel, err := model.ParseChannel(*channelFlag)
	if err != nil {
		logger.Fatal("Invalid channel", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	router, err := delivery.NewRouterFromConfig(cfg.Delivery, logger)
	if err != nil {
		logger.Fatal("Failed to initialize delivery channels", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	start := time.Now()
	messageID, err := router.Send(ctx, channel, *to, *message)
	if err != nil {
		logger.Fatal("Send failed",
			zap.String("channel", string(channel)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
	}

	logger.Info("Message accepted by provider",
		zap.String("channel", string(channel)),
		zap.String("provider_message_id", messageID),
		zap.Duration("elapsed", time.Since(start)),
	)
}
