package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_Sign(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "ledger-api-secret"
	payload := svc.BuildCanonicalString("POST", "/v1/credits:mint", 1708092000, "n-1", `{"amount":"1000"}`)

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestHMACSignatureService_SignDependsOnKeyAndPayload(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("correct-key", "original payload")

	assert.NotEqual(t, signature, svc.Sign("wrong-key", "original payload"))
	assert.NotEqual(t, signature, svc.Sign("correct-key", "tampered payload"))
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}

func TestHMACSignatureService_BuildCanonicalString_HashesBody(t *testing.T) {
	svc := NewHMACSignatureService()
	body := `{"ledger_credit_id":"lc-1","total_minor":1000}`

	digest := sha256.Sum256([]byte(body))
	expected := "POST|/v1/purchases|1708092000|abc123|" + hex.EncodeToString(digest[:])

	assert.Equal(t, expected, svc.BuildCanonicalString("POST", "/v1/purchases", 1708092000, "abc123", body))
}

func TestHMACSignatureService_EmptyBody(t *testing.T) {
	svc := NewHMACSignatureService()

	result := svc.BuildCanonicalString("GET", "/v1/credits/lc-1", 1708092000, "nonce1", "")
	assert.Equal(t, "GET|/v1/credits/lc-1|1708092000|nonce1|e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", result)
}
