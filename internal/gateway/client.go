package gateway

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

// Client talks HTTP to the external payment gateway. Outbound payout orders
// are signed with the checksum key; transient failures (5xx, network) are
// retried with exponential backoff inside a fixed attempt budget; client
// errors are permanent and surface immediately.
type Client struct {
	baseURL     string
	clientID    string
	apiKey      string
	checksumKey []byte
	http        *http.Client
	maxAttempts int
	backoffBase time.Duration
}

type ClientConfig struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReadTimeout time.Duration
	MaxAttempts int
	BackoffBase time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		clientID:    cfg.ClientID,
		apiKey:      cfg.APIKey,
		checksumKey: []byte(cfg.ChecksumKey),
		http:        &http.Client{Timeout: cfg.ReadTimeout},
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
	}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode payment intent: %w", err)
	}
	headers := map[string]string{"x-signature": SignPayload(c.checksumKey, payload)}

	var out struct {
		Code string        `json:"code"`
		Desc string        `json:"desc"`
		Data PaymentIntent `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/payment-requests", payload, headers, &out); err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &out.Data, nil
}

func (c *Client) CreatePayoutOrder(ctx context.Context, req PayoutOrderRequest, idempotencyKey string) (*PayoutOrderResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode payout order: %w", err)
	}
	headers := map[string]string{
		"x-signature":       SignPayoutOrder(c.checksumKey, req),
		"x-idempotency-key": idempotencyKey,
	}

	var out PayoutOrderResult
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", payload, headers, &out); err != nil {
		return nil, fmt.Errorf("create payout order %s: %w", req.ReferenceID, err)
	}
	return &out, nil
}

func (c *Client) GetPayoutStatus(ctx context.Context, referenceID string) (*PayoutStatus, error) {
	var out struct {
		Code string       `json:"code"`
		Desc string       `json:"desc"`
		Data PayoutStatus `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/payouts/"+referenceID, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get payout status %s: %w", referenceID, err)
	}
	return &out.Data, nil
}

// do sends one request through the retry loop. Only 5xx and transport errors
// are retried; a 4xx is a permanent client error.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, headers map[string]string, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase << (attempt - 2)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		respBody, status, err := c.send(ctx, method, path, payload, headers)
		if err != nil {
			lastErr = err
			zap.L().Warn("gateway request failed",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch {
		case status >= 200 && status < 300:
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode gateway response: %w", err)
			}
			return nil
		case status >= 400 && status < 500:
			return fmt.Errorf("%w: status %d: %s", ErrRejected, status, truncate(respBody, 256))
		default:
			lastErr = fmt.Errorf("gateway status %d: %s", status, truncate(respBody, 256))
			zap.L().Warn("gateway server error",
				zap.String("path", path), zap.Int("attempt", attempt), zap.Int("status", status))
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, headers map[string]string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
