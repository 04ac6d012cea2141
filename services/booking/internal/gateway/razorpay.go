// Package gateway - адаптер платежного шлюза Razorpay: создание заказа,
// проверка подписей и запрос статуса платежа.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/vendor-marketplace/pkg/circuitbreaker"
	"example.com/vendor-marketplace/pkg/metrics"
	"example.com/vendor-marketplace/services/booking/internal/domain"
)

// PaymentStatusCaptured - статус платежа Razorpay после списания.
const PaymentStatusCaptured = "captured"

var tracer = otel.Tracer("booking-service/gateway")

// Config - параметры клиента.
type Config struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// Order - заказ в шлюзе.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentDetails - состояние платежа по данным шлюза.
type PaymentDetails struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// APIError - ответ шлюза с кодом 4xx/5xx.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: HTTP %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client - HTTP клиент Razorpay. Безопасен для конкурентного использования.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *circuitbreaker.Breaker
}

// NewClient создаёт клиента. Каждый вызов ограничен cfg.Timeout.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
		// Ответы 4xx - отказ по существу запроса, а не недоступность шлюза.
		breaker: circuitbreaker.NewWithSettings("razorpay", circuitbreaker.DefaultSettings(), func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode >= http.StatusInternalServerError
			}
			return !errors.Is(err, context.Canceled)
		}),
	}
}

// KeyID возвращает публичный ключ для checkout на клиенте.
func (c *Client) KeyID() string {
	return c.cfg.KeyID
}

// CreateOrder создаёт заказ на amountMinor минимальных единиц валюты.
// При ошибке заказ считается несозданным.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*Order, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	var order Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/orders", body, &order); err != nil {
		return nil, domain.Gateway("не удалось создать заказ в платежном шлюзе", err)
	}
	if order.ID == "" {
		return nil, domain.Gateway("шлюз вернул заказ без id", nil)
	}
	return &order, nil
}

// GetPaymentDetails запрашивает у шлюза авторитетный статус платежа.
func (c *Client) GetPaymentDetails(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	var details PaymentDetails
	path := "/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "get_payment", http.MethodGet, path, nil, &details); err != nil {
		return nil, domain.Gateway("не удалось получить платёж из платежного шлюза", err)
	}
	return &details, nil
}

// VerifySignature проверяет razorpay_signature = hex(HMAC-SHA256(key_secret, order_id|payment_id)).
// Сравнение за постоянное время.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return verifyHMAC([]byte(c.cfg.KeySecret), []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature проверяет подпись вебхука по сырому телу запроса.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return verifyHMAC([]byte(c.cfg.WebhookSecret), rawBody, signature)
}

func verifyHMAC(secret, message []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign считает подпись так же, как шлюз. Нужен тестам и локальной отладке вебхуков.
func Sign(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	ctx, span := tracer.Start(ctx, "razorpay."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("razorpay.path", path))

	start := time.Now()
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, in, out)
	})
	metrics.RecordGatewayCall(op, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ошибка сериализации запроса: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			apiErr.Code = body.Error.Code
			apiErr.Description = body.Error.Description
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка разбора ответа шлюза: %w", err)
	}
	return nil
}
