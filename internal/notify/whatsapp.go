// Package notify delivers report texts to people. The production sender
// talks to the WhatsApp Cloud API; the log sender stands in when no
// credentials are configured.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Sender delivers one text message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient, text string) error
}

const defaultGraphURL = "https://graph.facebook.com/v17.0"

type WhatsAppSender struct {
	httpClient *http.Client
	baseURL    string
	phoneID    string
	token      string
}

// NewWhatsAppSender builds a sender for the WhatsApp Cloud API. phoneID is
// the business phone number id, token the permanent access token.
func NewWhatsAppSender(phoneID, token string) *WhatsAppSender {
	return &WhatsAppSender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultGraphURL,
		phoneID:    phoneID,
		token:      token,
	}
}

type whatsAppPayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppText struct {
	Body string `json:"body"`
}

func (s *WhatsAppSender) Send(ctx context.Context, recipient, text string) error {
	payload := whatsAppPayload{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
		Text:             whatsAppText{Body: text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, detail)
	}

	slog.InfoContext(ctx, "WhatsApp message sent", "recipient", recipient, "chars", len(text))
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used in
// development and whenever WhatsApp credentials are missing.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, recipient, text string) error {
	slog.InfoContext(ctx, "Report (log sender)", "recipient", recipient, "text", text)
	return nil
}
