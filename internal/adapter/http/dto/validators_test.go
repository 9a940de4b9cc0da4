package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := RegisterRequest{
		Email:    "  alice@example.com  ",
		Password: "  pass1234  ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "alice@example.com", req.Email)
	assert.Equal(t, "  pass1234  ", req.Password, "passwords are opted out")
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := LoginRequest{Email: "<script>@x.io"}
	SanitizeStruct(&req)

	assert.Contains(t, req.Email, "&lt;script&gt;")
	assert.NotContains(t, req.Email, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	id := "  7c1e  "
	resp := TransactionResponse{MerchantID: &id}
	SanitizeStruct(&resp)

	assert.Equal(t, "7c1e", *resp.MerchantID)
}

func TestSanitizeStruct_NilPointerIsNoOp(t *testing.T) {
	resp := TransactionResponse{ID: " a "}
	SanitizeStruct(&resp)

	assert.Nil(t, resp.MerchantID)
	assert.Equal(t, "a", resp.ID)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	req := RegisterRequest{Email: " x "}
	SanitizeStruct(req)
	assert.Equal(t, " x ", req.Email)
}

// --- safe_id validator ---

func TestLedgerHeaders_SafeID(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		valid bool
	}{
		{"empty is allowed", "", true},
		{"uuid", "6f1d0c3e-5b0a-4f5e-9d9b-2a1c3e4f5a6b", true},
		{"order style", "order:2024.11_a", true},
		{"space", "order 1", false},
		{"html", "<x>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&LedgerHeaders{IdempotencyKey: tt.key})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
