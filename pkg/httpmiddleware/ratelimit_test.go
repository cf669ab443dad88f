package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

	for i := range 5 {
		w := hit(h, nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

	require.Equal(t, http.StatusOK, hit(h, nil).Code)
	w := hit(h, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = hit(h, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_Keys(t *testing.T) {
	for _, tt := range []struct {
		name  string
		cfg   RateLimitConfig
		first func(*http.Request)
		same  func(*http.Request)
		other func(*http.Request)
	}{
		{
			name:  "RemoteAddr",
			cfg:   RateLimitConfig{Max: 1, Window: time.Minute},
			first: func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1234" },
			same:  func(r *http.Request) { r.RemoteAddr = "10.0.0.1:5678" },
			other: func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1234" },
		},
		{
			name:  "XForwardedFor",
			cfg:   RateLimitConfig{Max: 1, Window: time.Minute},
			first: func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18") },
			same: func(r *http.Request) {
				r.RemoteAddr = "192.168.1.2:5555"
				r.Header.Set("X-Forwarded-For", "203.0.113.50")
			},
			other: func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.7") },
		},
		{
			name: "CustomKey",
			cfg: RateLimitConfig{Max: 1, Window: time.Minute, KeyFunc: func(r *http.Request) string {
				return r.Header.Get("Authorization")
			}},
			first: func(r *http.Request) { r.Header.Set("Authorization", "Bearer a") },
			same:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer a") },
			other: func(r *http.Request) { r.Header.Set("Authorization", "Bearer b") },
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := RateLimit(tt.cfg)(okHandler())
			assert.Equal(t, http.StatusOK, hit(h, tt.first).Code)
			assert.Equal(t, http.StatusTooManyRequests, hit(h, tt.same).Code)
			assert.Equal(t, http.StatusOK, hit(h, tt.other).Code)
		})
	}
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Second})
	now := time.Now()

	_, _, ok := rl.allow("a", now)
	require.True(t, ok)
	_, _, ok = rl.allow("a", now)
	require.False(t, ok)

	rl.evict(now.Add(time.Second))
	assert.Len(t, rl.clients, 1)
	rl.evict(now.Add(2 * time.Second))
	assert.Empty(t, rl.clients)
}
