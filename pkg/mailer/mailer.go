package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coraldesk/coraldesk-backend/pkg/config"
)

// Email is one rendered HTML email.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// TextMessage is one rendered plain-text WhatsApp message.
type TextMessage struct {
	To   string
	Body string
}

// Transport abstracts outbound delivery. Mocking it in tests gives full
// control over provider behaviour without real HTTP calls.
type Transport interface {
	SendEmail(ctx context.Context, email Email) error
	SendWhatsApp(ctx context.Context, msg TextMessage) error
}

// HTTPTransport delivers messages by POSTing to the configured provider
// endpoints. A send counts as delivered only on a 2xx response; anything
// else is an error the queue's retry bookkeeping can act on.
type HTTPTransport struct {
	cfg    config.MailerConfig
	client *http.Client
}

// NewHTTPTransport builds the provider-backed transport.
func NewHTTPTransport(cfg config.MailerConfig) *HTTPTransport {
	return &HTTPTransport{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.SendTimeout,
		},
	}
}

type emailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type whatsAppRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendEmail posts the rendered email to the email provider endpoint.
func (t *HTTPTransport) SendEmail(ctx context.Context, email Email) error {
	if t.cfg.EmailEndpoint == "" {
		return errors.New("email endpoint not configured")
	}
	if email.To == "" {
		return errors.New("email recipient required")
	}
	return t.post(ctx, t.cfg.EmailEndpoint, emailRequest{
		From:    t.cfg.FromAddress,
		To:      email.To,
		Subject: email.Subject,
		HTML:    email.HTML,
	})
}

// SendWhatsApp posts the text message to the WhatsApp provider endpoint.
func (t *HTTPTransport) SendWhatsApp(ctx context.Context, msg TextMessage) error {
	if t.cfg.WhatsAppEndpoint == "" {
		return errors.New("whatsapp endpoint not configured")
	}
	if msg.To == "" {
		return errors.New("whatsapp recipient required")
	}
	return t.post(ctx, t.cfg.WhatsAppEndpoint, whatsAppRequest{
		To:   msg.To,
		Body: msg.Body,
	})
}

func (t *HTTPTransport) post(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected provider status: %d", resp.StatusCode)
	}
	return nil
}

var _ Transport = (*HTTPTransport)(nil)
