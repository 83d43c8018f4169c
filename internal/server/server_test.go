package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/walletdash/internal/okx"
)

var testCreds = okx.Credentials{
	ProjectID:  "proj",
	APIKey:     "key",
	SecretKey:  "secret",
	Passphrase: "pass",
}

type fakeOKX struct {
	srv    *httptest.Server
	hits   atomic.Int32
	mu     sync.Mutex
	uris   []string
	status int
	body   string
}

func newFakeOKX(t *testing.T, status int, body string) *fakeOKX {
	t.Helper()
	f := &fakeOKX{status: status, body: body}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.mu.Lock()
		f.uris = append(f.uris, r.URL.RequestURI())
		f.mu.Unlock()
		if r.Header.Get(okx.HeaderAccessSign) == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(f.body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOKX) lastURI() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uris) == 0 {
		return ""
	}
	return f.uris[len(f.uris)-1]
}

func newTestServer(creds okx.Credentials, upstream *fakeOKX) *Server {
	client := okx.NewClient(creds, okx.Options{BaseURL: upstream.srv.URL, RateLimit: -1, Timeout: time.Second})
	return New(client, Options{})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestEndpointRoute(t *testing.T) {
	const payload = `{"code":"0","data":[{"acctLv":"1"}]}`

	t.Run("passes the upstream body through verbatim", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/endpoint?endpoint=security-status")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Equal(t, "/api/v5/account/config", upstream.lastURI())
	})

	t.Run("forwards extra query parameters", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/endpoint?endpoint=transactions&instType=SPOT")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/api/v5/trade/orders-history?instType=SPOT", upstream.lastURI())
	})

	t.Run("unknown endpoint is a 400 without network", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/endpoint?endpoint=unknown-name")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, okx.KindUnknownEndpoint, body.Kind)
		assert.Contains(t, body.Error, "invalid endpoint")
		assert.Zero(t, upstream.hits.Load())
	})

	t.Run("missing endpoint parameter", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/endpoint")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unconfigured credentials are a 500 without network", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		creds := testCreds
		creds.Passphrase = ""
		rec := get(t, newTestServer(creds, upstream).Handler(), "/api/endpoint?endpoint=security-status")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, okx.KindConfiguration, body.Kind)
		assert.Equal(t, "OKX API credentials not configured", body.Error)
		assert.NotContains(t, rec.Body.String(), "secret")
		assert.Zero(t, upstream.hits.Load())
	})

	t.Run("upstream error is a 502", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusInternalServerError, `{"msg":"boom"}`)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/endpoint?endpoint=wallet-info")

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, okx.KindUpstreamFailure, decodeError(t, rec).Kind)
	})

	t.Run("wrong method", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := httptest.NewRecorder()
		newTestServer(testCreds, upstream).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/endpoint?endpoint=wallet-info", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Zero(t, upstream.hits.Load())
	})
}

func TestTransactionsRoute(t *testing.T) {
	const payload = `{"code":"0","data":[]}`

	t.Run("defaults the limit to 20", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/transactions?address=0xabc&chainId=1")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.String())
		assert.Equal(t, "/api/v5/dex/aggregator/account/tx-history?address=0xabc&chainId=1&limit=20", upstream.lastURI())
	})

	t.Run("explicit limit", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/transactions?address=0xabc&chainId=137&limit=5")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, upstream.lastURI(), "limit=5")
	})

	t.Run("large limit is proxied unchanged", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(testCreds, upstream).Handler(), "/api/transactions?address=0xabc&chainId=1&limit=500")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, payload, rec.Body.String())
		assert.Equal(t, int32(1), upstream.hits.Load())
		assert.Contains(t, upstream.lastURI(), "limit=500")
	})

	invalid := map[string]string{
		"missing address":  "/api/transactions?chainId=1",
		"missing chain":    "/api/transactions?address=0xabc",
		"non-numeric":      "/api/transactions?address=0xabc&chainId=1&limit=ten",
		"zero limit":       "/api/transactions?address=0xabc&chainId=1&limit=0",
		"negative limit":   "/api/transactions?address=0xabc&chainId=1&limit=-3",
	}
	for name, target := range invalid {
		t.Run(name, func(t *testing.T) {
			upstream := newFakeOKX(t, http.StatusOK, payload)
			rec := get(t, newTestServer(testCreds, upstream).Handler(), target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, okx.KindInvalidInput, decodeError(t, rec).Kind)
			assert.Zero(t, upstream.hits.Load())
		})
	}

	t.Run("valid input but unconfigured", func(t *testing.T) {
		upstream := newFakeOKX(t, http.StatusOK, payload)
		rec := get(t, newTestServer(okx.Credentials{}, upstream).Handler(), "/api/transactions?address=0xabc&chainId=1")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Zero(t, upstream.hits.Load())
	})
}

func TestBalancesRoute(t *testing.T) {
	const payload = `{"code":"0","data":[{"tokenAssets":[]}]}`
	upstream := newFakeOKX(t, http.StatusOK, payload)
	h := newTestServer(testCreds, upstream).Handler()

	rec := get(t, h, "/api/balances?address=0xabc&chainId=56")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "/api/v5/wallet/asset/all-token-balances-by-address?address=0xabc&chains=56", upstream.lastURI())

	rec = get(t, h, "/api/balances?address=0xabc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestID(t *testing.T) {
	upstream := newFakeOKX(t, http.StatusOK, `{}`)
	h := newTestServer(testCreds, upstream).Handler()

	t.Run("generated", func(t *testing.T) {
		rec := get(t, h, "/healthz")
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})

	t.Run("included in error bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/endpoint?endpoint=bogus", nil)
		req.Header.Set(RequestIDHeader, "req-400")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "req-400", decodeError(t, rec).RequestID)
	})

	t.Run("available to handlers", func(t *testing.T) {
		s := &Server{logger: zerolog.Nop()}
		var seen string
		wrapped := s.withRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "xyz")
		wrapped.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "xyz", seen)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	upstream := newFakeOKX(t, http.StatusOK, `{}`)
	s := newTestServer(okx.Credentials{}, upstream)
	h := s.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","okx_configured":false}`, rec.Body.String())

	get(t, h, "/api/endpoint?endpoint=nope")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Requests.WithLabelValues("/api/endpoint", "GET", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.Metrics().Errors.WithLabelValues(string(okx.KindUnknownEndpoint))))

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "walletdash_http_requests_total"))
	assert.True(t, strings.Contains(rec.Body.String(), "walletdash_http_request_duration_seconds"))
}

func TestServe_Shutdown(t *testing.T) {
	upstream := newFakeOKX(t, http.StatusOK, `{}`)
	s := newTestServer(testCreds, upstream)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
