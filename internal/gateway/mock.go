package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockGateway simulates the external payment gateway in tests and local
// development. Responses are deterministic unless an error is injected.
type MockGateway struct {
	mu sync.Mutex

	// IntentErr, PayoutErr and StatusErr are returned verbatim when set.
	IntentErr error
	PayoutErr error
	StatusErr error

	// StatusByRef overrides the reported payout status per reference ID.
	// References without an override report StatusProcessing.
	StatusByRef map[string]string

	// PayoutCalls records every CreatePayoutOrder request with its
	// idempotency key, in call order.
	PayoutCalls []MockPayoutCall
}

type MockPayoutCall struct {
	Req            PayoutOrderRequest
	IdempotencyKey string
}

func NewMockGateway() *MockGateway {
	return &MockGateway{StatusByRef: make(map[string]string)}
}

func (g *MockGateway) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.IntentErr != nil {
		return nil, g.IntentErr
	}
	code := fmt.Sprintf("MOCK%s%05d", time.Now().Format("20060102150405"), rand.Intn(100000))
	return &PaymentIntent{
		OrderCode:   code,
		CheckoutURL: "https://mock.gateway.local/checkout/" + code,
		QRCode:      "00020101MOCK" + code,
	}, nil
}

func (g *MockGateway) CreatePayoutOrder(ctx context.Context, req PayoutOrderRequest, idempotencyKey string) (*PayoutOrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.PayoutCalls = append(g.PayoutCalls, MockPayoutCall{Req: req, IdempotencyKey: idempotencyKey})
	if g.PayoutErr != nil {
		return nil, g.PayoutErr
	}
	out := &PayoutOrderResult{Code: "00", Desc: "success"}
	out.Data.ReferenceID = req.ReferenceID
	out.Data.TransactionID = "MOCKTX-" + req.ReferenceID
	out.Data.Status = StatusProcessing
	return out, nil
}

func (g *MockGateway) GetPayoutStatus(ctx context.Context, referenceID string) (*PayoutStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.StatusErr != nil {
		return nil, g.StatusErr
	}
	status := StatusProcessing
	if s, ok := g.StatusByRef[referenceID]; ok {
		status = s
	}
	return &PayoutStatus{
		Status:        status,
		TransactionID: "MOCKTX-" + referenceID,
	}, nil
}

// SetStatus marks a reference ID to report the given status on the next poll.
func (g *MockGateway) SetStatus(referenceID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.StatusByRef[referenceID] = status
}
