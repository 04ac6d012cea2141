// Package sender отправляет WhatsApp/SMS через HTTP API провайдера сообщений.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/vendor-marketplace/pkg/circuitbreaker"
	"example.com/vendor-marketplace/pkg/logger"
	"example.com/vendor-marketplace/pkg/notification"
)

// ErrRejected - провайдер отверг сообщение (4xx). Повтор не поможет.
var ErrRejected = errors.New("провайдер отклонил сообщение")

// Config - настройки провайдера.
type Config struct {
	URL      string
	Token    string
	SenderID string
	Channel  string // whatsapp | sms
	Timeout  time.Duration
}

type sendRequest struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

type sendResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error,omitempty"`
}

// Provider - клиент провайдера сообщений.
type Provider struct {
	http    *http.Client
	cfg     Config
	breaker *circuitbreaker.Breaker
}

// NewProvider создаёт клиента. Отказы 4xx не открывают breaker.
func NewProvider(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Channel == "" {
		cfg.Channel = "whatsapp"
	}
	return &Provider{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		breaker: circuitbreaker.NewWithSettings("notify-provider", circuitbreaker.DefaultSettings(), func(err error) bool {
			return !errors.Is(err, ErrRejected) && !errors.Is(err, context.Canceled)
		}),
	}
}

// Channel возвращает канал доставки (метка метрик).
func (p *Provider) Channel() string { return p.cfg.Channel }

// Send доставляет одно уведомление и возвращает id сообщения у провайдера.
// Message.ID уходит как reference, по нему провайдер отбрасывает дубли.
func (p *Provider) Send(ctx context.Context, m *notification.Message) (string, error) {
	body, err := json.Marshal(sendRequest{
		From:      p.cfg.SenderID,
		To:        m.RecipientPhone,
		Channel:   p.cfg.Channel,
		Text:      m.Text,
		Reference: m.ID,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации сообщения: %w", err)
	}

	var out sendResponse
	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.post(ctx, body, &out)
	})
	if err != nil {
		return "", err
	}

	logger.Ctx(ctx).Debug().
		Str("notification_id", m.ID).
		Str("provider_message_id", out.MessageID).
		Msg("Уведомление принято провайдером")
	return out.MessageID, nil
}

func (p *Provider) post(ctx context.Context, body []byte, out *sendResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса к провайдеру: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа провайдера: %w", err)
	}
	_ = json.Unmarshal(data, out)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("провайдер вернул HTTP %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("провайдер ограничил частоту запросов (HTTP 429)")
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d %s", ErrRejected, resp.StatusCode, out.Error)
	}
	return nil
}
