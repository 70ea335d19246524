// Package push adapts the external FCM-style delivery service to the
// PushGateway port.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/port"
)

type FCMGateway struct {
	endpoint  string
	serverKey string
	client    *http.Client
	mock      bool
	logger    *zap.Logger
}

// NewFCMGateway builds the gateway capability. An empty server key leaves
// it unavailable (dispatches short-circuit) unless mock mode is on, which
// pretends every send succeeds for local runs.
func NewFCMGateway(endpoint, serverKey string, mock bool, logger *zap.Logger) *FCMGateway {
	return &FCMGateway{
		endpoint:  endpoint,
		serverKey: serverKey,
		mock:      mock,
		logger:    logger,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *FCMGateway) Available() bool {
	return g.mock || g.serverKey != ""
}

type fcmRequest struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

func (g *FCMGateway) Send(ctx context.Context, token string, msg port.PushMessage) error {
	if g.mock {
		g.logger.Debug("mock push send", zap.String("title", msg.Title))
		return nil
	}

	payload, err := json.Marshal(fcmRequest{
		To:           token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Authorization", "key="+g.serverKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("push send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out fcmResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			// 200 with an undecodable body still counts as delivered.
			return nil
		}
		if out.Failure > 0 && len(out.Results) > 0 {
			if e := out.Results[0].Error; e == "NotRegistered" || e == "InvalidRegistration" {
				return fmt.Errorf("push rejected (%s): %w", e, port.ErrTokenInvalid)
			}
			return fmt.Errorf("push rejected: %s", out.Results[0].Error)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("push rejected (status %d): %w", resp.StatusCode, port.ErrTokenInvalid)
	default:
		return fmt.Errorf("push send: unexpected status %d", resp.StatusCode)
	}
}
