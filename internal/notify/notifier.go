// Package notify pushes order outcomes to external channels (Telegram,
// generic webhooks). Delivery is best-effort and never blocks a trade.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Event is one order outcome to announce.
type Event struct {
	Side    string `json:"side"` // BUY, SELL
	Stock   string `json:"stock"`
	Qty     int64  `json:"qty"`
	OrderID string `json:"order_id,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Notifier is the interface for all delivery backends.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// Multi fans one event out to several notifiers; each failure is logged
// and swallowed.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, ev Event) error {
	for _, n := range m {
		if err := n.Send(ctx, ev); err != nil {
			log.Printf("[notify] delivery failed: %v", err)
		}
	}
	return nil
}

// Webhook POSTs the event as JSON to a fixed URL.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier for url.
func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Telegram sends the event via the Telegram Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegram creates a Telegram notifier from a @BotFather token and a
// target chat id.
func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{botToken: botToken, chatID: chatID, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *Telegram) Send(ctx context.Context, ev Event) error {
	status := "placed"
	if !ev.Success {
		status = "FAILED"
	}
	text := fmt.Sprintf("%s %s x%d %s", ev.Side, ev.Stock, ev.Qty, status)
	if ev.OrderID != "" {
		text += "\norder id: " + ev.OrderID
	}
	if ev.Message != "" {
		text += "\n" + ev.Message
	}

	body, _ := json.Marshal(map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: unexpected status %d", resp.StatusCode)
	}
	return nil
}
