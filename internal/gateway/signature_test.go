package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSignPayoutOrderCanonicalOrder(t *testing.T) {
	key := []byte("test-checksum-key")
	req := PayoutOrderRequest{
		ReferenceID:     "PO-abc123",
		Amount:          decimal.NewFromInt(80000),
		ToBin:           "970422",
		ToAccountNumber: "0012345678",
		Description:     "driver payout",
		Category:        "payout",
	}

	sig := SignPayoutOrder(key, req)
	require.Len(t, sig, 64)

	// Deterministic for identical input.
	require.Equal(t, sig, SignPayoutOrder(key, req))

	// Any field change produces a different signature.
	changed := req
	changed.Amount = decimal.NewFromInt(80001)
	require.NotEqual(t, sig, SignPayoutOrder(key, changed))

	changed = req
	changed.ToAccountNumber = "0012345679"
	require.NotEqual(t, sig, SignPayoutOrder(key, changed))
}

func TestSignPayoutOrderEscapesValues(t *testing.T) {
	key := []byte("test-checksum-key")
	a := PayoutOrderRequest{ReferenceID: "A", Description: "x&toBin=evil", Amount: decimal.NewFromInt(1)}
	b := PayoutOrderRequest{ReferenceID: "A", Description: "x", ToBin: "evil", Amount: decimal.NewFromInt(1)}
	require.NotEqual(t, SignPayoutOrder(key, a), SignPayoutOrder(key, b))
}

func TestVerifyPayload(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	payload := []byte(`{"orderCode":"OC1","amount":500000,"status":"PAID"}`)

	sig := SignPayload(key, payload)
	require.True(t, VerifyPayload(key, payload, sig))

	require.False(t, VerifyPayload(key, payload, sig[:len(sig)-1]+"0"))
	require.False(t, VerifyPayload(key, append(payload, ' '), sig))
	require.False(t, VerifyPayload([]byte("wrong-key-wrong-key-wrong-key-12"), payload, sig))
	require.False(t, VerifyPayload(nil, payload, sig))
}
