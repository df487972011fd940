// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSConfig holds the settings for the HTTP SMS gateway. The gateway is
// expected to accept a JSON POST with "to" and "message" fields and answer
// with a 2xx status on acceptance.
type SMSConfig struct {
	URL    string
	Token  string
	Sender string
}

// SMSSender delivers access codes as text messages through an HTTP
// gateway.
type SMSSender struct {
	config SMSConfig
	client *http.Client
}

// NewSMSSender creates an SMS sender for the given gateway settings.
func NewSMSSender(config SMSConfig) *SMSSender {
	return &SMSSender{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsRequest struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

func (s *SMSSender) Method() string { return "sms" }

func (s *SMSSender) Send(ctx context.Context, destination string, msg Message) error {
	payload, err := json.Marshal(smsRequest{
		To:      destination,
		From:    s.config.Sender,
		Message: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encoding sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
