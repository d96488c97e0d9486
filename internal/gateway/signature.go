package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// SignPayoutOrder computes the HMAC-SHA256 signature over the canonical field
// string of a payout order: fields sorted alphabetically, values
// percent-encoded, joined key=value with '&'.
func SignPayoutOrder(key []byte, req PayoutOrderRequest) string {
	fields := map[string]string{
		"amount":          req.Amount.String(),
		"category":        req.Category,
		"description":     req.Description,
		"referenceId":     req.ReferenceID,
		"toAccountNumber": req.ToAccountNumber,
		"toBin":           req.ToBin,
	}
	return signCanonical(key, fields)
}

func signCanonical(key []byte, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+url.QueryEscape(fields[name]))
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignPayload computes the HMAC-SHA256 hex digest of a raw payload. Used for
// webhook bodies, where the signature covers the bytes as delivered.
func SignPayload(key, payload []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload checks a webhook signature in constant time.
func VerifyPayload(key, payload []byte, signature string) bool {
	if len(key) == 0 {
		return false
	}
	expected := SignPayload(key, payload)
	return hmac.Equal([]byte(signature), []byte(expected))
}
