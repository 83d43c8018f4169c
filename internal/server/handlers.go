package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/yolodolo42/walletdash/internal/okx"
)

type errorBody struct {
	Error     string   `json:"error"`
	Kind      okx.Kind `json:"kind,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

// handleEndpoint is the signed passthrough. Query parameters other than
// "endpoint" are forwarded upstream.
func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	name := query.Get("endpoint")
	query.Del("endpoint")

	raw, err := s.api.CallEndpoint(r.Context(), name, query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, ok := parseLimit(query)
	if !ok {
		s.writeError(w, r, &okx.Error{Kind: okx.KindInvalidInput, Detail: "limit must be a positive integer"})
		return
	}

	raw, err := s.api.RawTransactions(r.Context(), query.Get("address"), query.Get("chainId"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	raw, err := s.api.RawBalances(r.Context(), query.Get("address"), query.Get("chainId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeRaw(w, raw)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"okx_configured": s.api.Configured(),
	})
}

// parseLimit reads the limit parameter. Absent means the upstream default.
func parseLimit(query url.Values) (int, bool) {
	v := query.Get("limit")
	if v == "" {
		return okx.DefaultHistoryLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: "internal error"}

	var apiErr *okx.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode()
		body = errorBody{Error: apiErr.Detail, Kind: apiErr.Kind}
		s.metrics.Errors.WithLabelValues(string(apiErr.Kind)).Inc()
	}

	body.RequestID = RequestID(r.Context())

	event := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Msg("request failed")

	writeJSON(w, status, body)
}

func writeRaw(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
