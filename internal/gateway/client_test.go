package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(ClientConfig{
		BaseURL:     baseURL,
		ClientID:    "client-1",
		APIKey:      "api-key-1",
		ChecksumKey: "test-checksum-key",
		ReadTimeout: 2 * time.Second,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
	})
}

func TestCreatePaymentIntentSendsSignedRequest(t *testing.T) {
	var gotSig, gotClientID, gotAPIKey string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("x-signature")
		gotClientID = r.Header.Get("x-client-id")
		gotAPIKey = r.Header.Get("x-api-key")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "00",
			"data": map[string]string{"orderCode": "OC-77", "checkoutUrl": "https://pay.example/OC-77"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	intent, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{
		Amount:      decimal.NewFromInt(500000),
		PayerRef:    "wallet-1",
		Description: "top-up",
	})
	require.NoError(t, err)
	require.Equal(t, "OC-77", intent.OrderCode)
	require.Equal(t, "https://pay.example/OC-77", intent.CheckoutURL)

	require.Equal(t, "client-1", gotClientID)
	require.Equal(t, "api-key-1", gotAPIKey)
	require.Equal(t, SignPayload([]byte("test-checksum-key"), gotBody), gotSig)
}

func TestCreatePayoutOrderSetsIdempotencyKey(t *testing.T) {
	var gotIdem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdem = r.Header.Get("x-idempotency-key")
		require.NotEmpty(t, r.Header.Get("x-signature"))
		_ = json.NewEncoder(w).Encode(PayoutOrderResult{Code: "00"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreatePayoutOrder(context.Background(), PayoutOrderRequest{
		ReferenceID: "PO-1",
		Amount:      decimal.NewFromInt(80000),
	}, "idem-key-1")
	require.NoError(t, err)
	require.Equal(t, "idem-key-1", gotIdem)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": "00",
			"data": map[string]string{"status": StatusSuccess, "transactionId": "TX-9"},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	status, err := c.GetPayoutStatus(context.Background(), "PO-1")
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, status.Status)
	require.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetPayoutStatus(context.Background(), "PO-1")
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, int32(1), calls.Load())
}

func TestUnavailableAfterAttemptBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetPayoutStatus(context.Background(), "PO-1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, int32(3), calls.Load())
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		BaseURL:     srv.URL,
		ChecksumKey: "test-checksum-key",
		MaxAttempts: 5,
		BackoffBase: time.Hour, // retry only ends via the context
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.GetPayoutStatus(ctx, "PO-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
