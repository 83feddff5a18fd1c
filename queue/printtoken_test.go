package queue

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehan-anujaya/SmartQ/models"
)

func TestTokenPayload_RoundTrip(t *testing.T) {
	payload := GenerateTokenPayload("e1", "svc1", 7)

	entryID, ok := VerifyTokenPayload(payload)

	assert.True(t, ok)
	assert.Equal(t, "e1", entryID)
}

func TestTokenPayload_TamperDetected(t *testing.T) {
	payload := GenerateTokenPayload("e1", "svc1", 7)

	// Forge a different token number with the original signature.
	tampered := strings.Replace(payload, "|7|", "|8|", 1)
	require.NotEqual(t, payload, tampered)

	_, ok := VerifyTokenPayload(tampered)
	assert.False(t, ok)
}

func TestTokenPayload_RejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "abc", "a|b|c", "a|b|c|d|e|f"} {
		_, ok := VerifyTokenPayload(payload)
		assert.False(t, ok, "payload %q", payload)
	}
}

func TestVerifyToken_ReportsEntryState(t *testing.T) {
	f := newFakes()
	seedQueue(f, "svc1", "q1", 1)
	seedEntry(f, "e1", "svc1", "q1", models.StatusCalled, 0, 7)
	swapEngine(t, f)

	payload := GenerateTokenPayload("e1", "svc1", 7)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/queue/verify?payload="+url.QueryEscape(payload), nil)

	VerifyToken(rr, req, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"valid":true`)
	assert.Contains(t, rr.Body.String(), `"status":"called"`)
}

func TestVerifyToken_BadSignature(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/queue/verify?payload=a%7Cb%7C1%7C2%7Cforged", nil)

	VerifyToken(rr, req, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"valid":false`)
}
