package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Statuses reported by the gateway for payment intents and payout orders.
const (
	StatusPaid       = "PAID"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusCancelled  = "CANCELLED"
	StatusExpired    = "EXPIRED"
	StatusPending    = "PENDING"
)

var (
	// ErrUnavailable means the gateway kept returning transient failures
	// until the retry budget ran out.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrRejected means the gateway replied with a client error; the request
	// is permanently bad and must not be retried.
	ErrRejected = errors.New("payment gateway rejected request")
)

// PaymentIntentRequest asks the gateway to collect money from a payer.
type PaymentIntentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PayerRef    string          `json:"payerRef"`
	Description string          `json:"description"`
	ReturnURL   string          `json:"returnUrl"`
	CancelURL   string          `json:"cancelUrl"`
}

// PaymentIntent is the gateway's checkout handle. OrderCode becomes the
// ledger's pspRef.
type PaymentIntent struct {
	OrderCode   string `json:"orderCode"`
	CheckoutURL string `json:"checkoutUrl"`
	QRCode      string `json:"qrCode"`
}

// PayoutOrderRequest sends money out to a bank account.
type PayoutOrderRequest struct {
	ReferenceID     string          `json:"referenceId"`
	Amount          decimal.Decimal `json:"amount"`
	ToBin           string          `json:"toBin"`
	ToAccountNumber string          `json:"toAccountNumber"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
}

// PayoutOrderResult is the gateway's acknowledgement envelope.
type PayoutOrderResult struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		ReferenceID   string `json:"referenceId"`
		TransactionID string `json:"transactionId"`
		Status        string `json:"status"`
	} `json:"data"`
}

// PayoutStatus is the answer to a status poll.
type PayoutStatus struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

// Gateway is the only doorway to the external payment provider. Local ledger
// locks are never held across these calls.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error)
	CreatePayoutOrder(ctx context.Context, req PayoutOrderRequest, idempotencyKey string) (*PayoutOrderResult, error)
	GetPayoutStatus(ctx context.Context, referenceID string) (*PayoutStatus, error)
}
