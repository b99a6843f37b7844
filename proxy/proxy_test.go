package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobbyswhip/miniapp-applesnakes-sub004/types"
)

func TestServeHTTP_ForwardsMethodBodyAndStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bets/place", r.URL.Path)
		assert.Equal(t, "round=7", r.URL.RawQuery)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"side":"up"}`, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer upstream.Close()

	handler, err := NewHandler(upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/bets/place?round=7", strings.NewReader(`{"side":"up"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"accepted":true}`, rec.Body.String())
}

func TestServeHTTP_Preserves402AndPaymentHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "envelope-b64", r.Header.Get(types.HeaderPayment))

		w.Header().Set(types.HeaderPaymentResponse, "settlement-b64")
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"x402Version":1,"accepts":[]}`))
	}))
	defer upstream.Close()

	handler, err := NewHandler(upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/launch", nil)
	req.Header.Set(types.HeaderPayment, "envelope-b64")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.JSONEq(t, `{"x402Version":1,"accepts":[]}`, rec.Body.String())
	assert.Equal(t, "settlement-b64", rec.Header().Get(types.HeaderPaymentResponse))
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestServeHTTP_DropsUnlistedHeaders(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Cookie"), "browser state must not leak upstream")
		assert.Empty(t, r.Header.Get("X-Internal-Debug"))

		w.Header().Set("X-Upstream-Internal", "secret")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	handler, err := NewHandler(upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Cookie", "session=abc")
	req.Header.Set("X-Internal-Debug", "1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Upstream-Internal"))
}

func TestServeHTTP_UpstreamUnreachable_BadGateway(t *testing.T) {
	// A server that is immediately closed yields a guaranteed-dead port.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	handler, err := NewHandler(deadURL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/launch", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Contains(t, body.Error, "upstream unreachable")
}

func TestServeHTTP_ForwardsUpstreamErrorsVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"success":false,"error":"rate limited"}`))
	}))
	defer upstream.Close()

	handler, err := NewHandler(upstream.URL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/verify-image", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"rate limited"}`, rec.Body.String())
}
