package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/nutri-plans/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimit_SecondRequestReturns429(t *testing.T) {
	handler := RateLimitMiddleware(&config.Config{RateLimitRPS: 1, RateLimitBurst: 1}, okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("1.2.3.4:12345"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("1.2.3.4:12345"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body.Error.Code)
}

func TestRateLimit_DisabledWhenZero(t *testing.T) {
	handler := RateLimitMiddleware(&config.Config{}, okHandler())

	for i := 0; i < 20; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, requestFrom("1.2.3.4:12345"))
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	handler := RateLimitMiddleware(&config.Config{RateLimitRPS: 1, RateLimitBurst: 1}, okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("1.1.1.1:1"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, requestFrom("2.2.2.2:1"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestClientIP(t *testing.T) {
	req := requestFrom("9.9.9.9:80")
	assert.Equal(t, "9.9.9.9", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 5.5.5.5 , 6.6.6.6")
	assert.Equal(t, "5.5.5.5", clientIP(req))

	req = requestFrom("not-an-addr")
	assert.Equal(t, "not-an-addr", clientIP(req))
}

func TestClientLimiters_SweepDropsIdle(t *testing.T) {
	c := newClientLimiters(1, 1)
	for i := 0; i < sweepEvery-1; i++ {
		c.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	require.Equal(t, sweepEvery-1, c.size())

	c.get("192.168.0.1")
	assert.Equal(t, 1, c.size())
}
