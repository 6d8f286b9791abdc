package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/screener/internal/clients/upstream"
	"github.com/aristath/screener/internal/marketdata"
)

// errorEnvelope is the error response body for every non-2xx answer.
type errorEnvelope struct {
	Error                string `json:"error"`
	Details              string `json:"details,omitempty"`
	DependencyStatusCode int    `json:"dependency_status_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorEnvelope{Error: msg, Details: details})
}

// writeDataError translates a data-layer failure into the gateway contract:
// 502 for malformed upstream payloads, 503 for unreachable upstreams, 504
// for timeouts, 404 for tickers with no data.
func writeDataError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketdata.ErrDelisted), errors.Is(err, marketdata.ErrNoData):
		writeError(w, http.StatusNotFound, "no data for ticker", err.Error())
	case errors.Is(err, upstream.ErrBadPayload):
		writeError(w, http.StatusBadGateway, "upstream payload invalid", err.Error())
	case errors.Is(err, upstream.ErrUnreachable):
		writeError(w, http.StatusServiceUnavailable, "upstream unreachable", err.Error())
	case errors.Is(err, upstream.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "upstream timeout", err.Error())
	default:
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) {
			writeJSON(w, http.StatusBadGateway, errorEnvelope{
				Error:                "upstream request failed",
				Details:              err.Error(),
				DependencyStatusCode: statusErr.Code,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
