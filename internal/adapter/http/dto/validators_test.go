package dto

import (
	"testing"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Username: "  alice  ",
		Password: "  pass1234  ",
		Name:     " Alice Farms ",
		Role:     " producer ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "pass1234", req.Password)
	assert.Equal(t, "Alice Farms", req.Name)
	assert.Equal(t, "producer", req.Role)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := RegisterFacilityRequest{
		Name:     "Ridge <script>alert('x')</script>",
		Location: "Porto",
		Source:   "wind",
	}
	SanitizeStruct(&req)

	assert.Contains(t, req.Name, "&lt;script&gt;")
	assert.NotContains(t, req.Name, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	buyer := "  6f1c1e52-8b39-4b43-9f4e-0d2f0a3c6a11  "
	req := ReplaySettlementRequest{LedgerTxReference: "tx-1", BuyerID: &buyer}
	SanitizeStruct(&req)

	assert.Equal(t, "6f1c1e52-8b39-4b43-9f4e-0d2f0a3c6a11", *req.BuyerID)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	req := RegisterRequest{Username: "carol", Password: "password123", Name: "Carol"}
	SanitizeStruct(&req)
	assert.Nil(t, req.WalletAddress)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"lc-001",
		"TX_002",
		"a.b.c",
		"simple123",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"lc 001",  // space
		"lc<001>", // angle brackets
		"lc;DROP", // semicolon
		"",        // empty
		"lc\n001", // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestWalletAddressBinding(t *testing.T) {
	valid := []string{
		"0x52908400098527886E0F7030069857D2E4169EE7",
		"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
	}
	invalid := []string{
		"0x123",
		"not a wallet",
		"0x52908400098527886E0F7030069857D2E4169EZZ",
	}

	base := RegisterRequest{Username: "dave", Password: "password123", Name: "Dave", Role: "buyer"}
	for _, addr := range valid {
		req := base
		req.WalletAddress = &addr
		assert.NoError(t, binding.Validator.ValidateStruct(&req), addr)
	}
	for _, addr := range invalid {
		req := base
		req.WalletAddress = &addr
		assert.Error(t, binding.Validator.ValidateStruct(&req), addr)
	}

	req := base
	assert.NoError(t, binding.Validator.ValidateStruct(&req), "wallet is optional")
}

func TestReattachRequestBinding(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&ReattachRequest{LedgerCreditID: "lc-12"}))
	assert.Error(t, binding.Validator.ValidateStruct(&ReattachRequest{LedgerCreditID: "lc 12; drop"}))
	assert.Error(t, binding.Validator.ValidateStruct(&ReattachRequest{}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), d)

	d, err = ParseDate("2026-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("03/01/2026")
	assert.Error(t, err)
}
