package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// PushConfig holds push gateway settings
type PushConfig struct {
	GatewayURL string
	APIToken   string
	Title      string
	Timeout    time.Duration
}

type pushRequest struct {
	Token string `json:"token"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushResponse struct {
	ID string `json:"id"`
}

// PushSender posts notifications to a push gateway that fans out to the
// device platforms
type PushSender struct {
	client     *http.Client
	gatewayURL string
	apiToken   string
	title      string
	logger     *zap.Logger
}

// NewPushSender creates a PushSender
func NewPushSender(cfg PushConfig, logger *zap.Logger) (*PushSender, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("push gateway url must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	title := cfg.Title
	if title == "" {
		title = defaultEmailSubject
	}
	return &PushSender{
		client:     &http.Client{Timeout: timeout},
		gatewayURL: cfg.GatewayURL,
		apiToken:   cfg.APIToken,
		title:      title,
		logger:     logger,
	}, nil
}

// Send posts one notification to the device token in address
func (s *PushSender) Send(ctx context.Context, address, message string) (string, error) {
	body, err := json.Marshal(pushRequest{Token: address, Title: s.title, Body: message})
	if err != nil {
		return "", fmt.Errorf("failed to encode push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call push gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("push gateway rejected notification",
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return "", fmt.Errorf("push gateway returned status %d", resp.StatusCode)
	}

	var out pushResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		return "", fmt.Errorf("push gateway returned no notification id")
	}

	s.logger.Debug("push notification accepted", zap.String("provider_message_id", out.ID))
	return out.ID, nil
}
