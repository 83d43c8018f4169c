package okx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yolodolo42/walletdash/internal/signing"
)

var testCreds = Credentials{
	ProjectID:  "project-1",
	APIKey:     "key-1",
	SecretKey:  "secret-1",
	Passphrase: "pass-1",
}

var fixedNow = time.Date(2024, 5, 1, 12, 30, 45, 123000000, time.UTC)

// upstream is a fake OKX API that records every request it receives.
type upstream struct {
	srv   *httptest.Server
	hits  atomic.Int32
	mu    sync.Mutex
	reqs  []*http.Request
	reply func(w http.ResponseWriter, r *http.Request)
}

func newUpstream(t *testing.T, reply func(w http.ResponseWriter, r *http.Request)) *upstream {
	t.Helper()
	u := &upstream{reply: reply}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.mu.Lock()
		u.reqs = append(u.reqs, r.Clone(context.Background()))
		u.mu.Unlock()
		u.reply(w, r)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) last() *http.Request {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.reqs) == 0 {
		return nil
	}
	return u.reqs[len(u.reqs)-1]
}

func jsonReply(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(creds Credentials, baseURL string) *Client {
	return NewClient(creds, Options{
		BaseURL:   baseURL,
		RateLimit: -1,
		Now:       func() time.Time { return fixedNow },
	})
}

func TestClient_CallEndpoint(t *testing.T) {
	t.Run("unknown endpoint fails without network activity", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{}`))
		client := newTestClient(testCreds, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "unknown-name", url.Values{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownEndpoint)
		assert.Equal(t, KindUnknownEndpoint, KindOf(err))

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode())
		assert.Zero(t, up.hits.Load())
	})

	t.Run("missing credentials fail without network activity", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{}`))
		client := newTestClient(Credentials{}, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "security-status", url.Values{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrCredentialsNotConfigured)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode())
		assert.Zero(t, up.hits.Load())
	})

	t.Run("a single missing field is a configuration error", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{}`))
		creds := testCreds
		creds.Passphrase = ""
		client := newTestClient(creds, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		assert.ErrorIs(t, err, ErrCredentialsNotConfigured)
		assert.Contains(t, err.Error(), "passphrase")
		assert.Zero(t, up.hits.Load())
	})

	t.Run("sends the signed header set", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{"code":"0","data":[]}`))
		client := newTestClient(testCreds, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "security-status", nil)
		require.NoError(t, err)

		req := up.last()
		require.NotNil(t, req)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/api/v5/account/config", req.URL.Path)

		ts := "2024-05-01T12:30:45.123Z"
		assert.Equal(t, "key-1", req.Header.Get(HeaderAccessKey))
		assert.Equal(t, ts, req.Header.Get(HeaderAccessTimestamp))
		assert.Equal(t, "pass-1", req.Header.Get(HeaderAccessPassphrase))
		assert.Equal(t, "project-1", req.Header.Get(HeaderAccessProject))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		assert.Equal(t,
			signing.Sign("secret-1", ts, "GET", "/api/v5/account/config", ""),
			req.Header.Get(HeaderAccessSign))
	})

	t.Run("signature covers the query actually sent", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{"code":"0","data":[]}`))
		client := newTestClient(testCreds, up.srv.URL)

		query := url.Values{"address": {"0xabc"}, "chainId": {"1"}, "limit": {"20"}}
		_, err := client.CallEndpoint(context.Background(), "tx-history", query)
		require.NoError(t, err)

		req := up.last()
		require.NotNil(t, req)
		sent := req.URL.RequestURI()
		assert.Equal(t, "/api/v5/dex/aggregator/account/tx-history?address=0xabc&chainId=1&limit=20", sent)
		assert.Equal(t,
			signing.Sign("secret-1", req.Header.Get(HeaderAccessTimestamp), "GET", sent, ""),
			req.Header.Get(HeaderAccessSign))
	})

	t.Run("passes a successful body through verbatim", func(t *testing.T) {
		body := `{"code":"0","data":[{"score":85}],"msg":""}`
		up := newUpstream(t, jsonReply(body))
		client := newTestClient(testCreds, up.srv.URL)

		got, err := client.CallEndpoint(context.Background(), "security-status", nil)
		require.NoError(t, err)
		assert.JSONEq(t, body, string(got))
		assert.Equal(t, body, string(got))
	})

	t.Run("non-2xx becomes an upstream failure", func(t *testing.T) {
		up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"code":"50111","msg":"Invalid OK-ACCESS-KEY"}`)
		})
		client := newTestClient(testCreds, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamFailure)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode())
		assert.Contains(t, apiErr.Detail, "HTTP 401")
	})

	t.Run("non-JSON success body is an upstream failure", func(t *testing.T) {
		up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "<html>maintenance</html>")
		})
		client := newTestClient(testCreds, up.srv.URL)

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		assert.ErrorIs(t, err, ErrUpstreamFailure)
	})

	t.Run("transport failure is normalized", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{}`))
		baseURL := up.srv.URL
		up.srv.Close()
		client := newTestClient(testCreds, baseURL)

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUpstreamFailure)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.NotNil(t, apiErr.Cause)
	})

	t.Run("slow upstream resolves to timeout", func(t *testing.T) {
		release := make(chan struct{})
		up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		client := NewClient(testCreds, Options{
			BaseURL:   up.srv.URL,
			Timeout:   30 * time.Millisecond,
			RateLimit: -1,
		})

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)

		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusGatewayTimeout, apiErr.StatusCode())
	})

	t.Run("concurrent calls all resolve", func(t *testing.T) {
		up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
		})
		client := newTestClient(testCreds, up.srv.URL)

		endpoints := []string{"wallet-info", "transactions", "security-status"}
		results := make([]json.RawMessage, len(endpoints))
		errs := make([]error, len(endpoints))

		var wg sync.WaitGroup
		for i, name := range endpoints {
			wg.Add(1)
			go func(i int, name string) {
				defer wg.Done()
				results[i], errs[i] = client.CallEndpoint(context.Background(), name, nil)
			}(i, name)
		}
		wg.Wait()

		for i, name := range endpoints {
			require.NoError(t, errs[i], name)
			ep, _ := ParseEndpoint(name)
			assert.JSONEq(t, `{"path":"`+ep.Path()+`"}`, string(results[i]))
		}
		assert.EqualValues(t, len(endpoints), up.hits.Load())
	})
}

func TestClient_RateLimit(t *testing.T) {
	t.Run("limiter wait that cannot meet the deadline is a timeout", func(t *testing.T) {
		up := newUpstream(t, jsonReply(`{}`))
		client := NewClient(testCreds, Options{
			BaseURL:   up.srv.URL,
			Timeout:   20 * time.Millisecond,
			RateLimit: 0.01,
		})

		_, err := client.CallEndpoint(context.Background(), "wallet-info", nil)
		require.NoError(t, err)

		_, err = client.CallEndpoint(context.Background(), "wallet-info", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.EqualValues(t, 1, up.hits.Load())
	})
}

func TestClient_Configured(t *testing.T) {
	assert.True(t, newTestClient(testCreds, "").Configured())
	assert.False(t, newTestClient(Credentials{APIKey: "k"}, "").Configured())
}

func TestError(t *testing.T) {
	t.Run("errors.Is matches by kind", func(t *testing.T) {
		err := &Error{Kind: KindTimeout, Detail: "slow"}
		assert.True(t, errors.Is(err, ErrTimeout))
		assert.False(t, errors.Is(err, ErrUpstreamFailure))
	})

	t.Run("wrapped errors keep their kind", func(t *testing.T) {
		err := errors.Join(errors.New("context"), &Error{Kind: KindInvalidInput})
		assert.Equal(t, KindInvalidInput, KindOf(err))
		assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	})

	t.Run("message includes the cause", func(t *testing.T) {
		err := &Error{Kind: KindUpstreamFailure, Detail: "upstream request failed", Cause: errors.New("boom")}
		assert.Equal(t, "UPSTREAM_FAILURE: upstream request failed (caused by: boom)", err.Error())
	})
}
