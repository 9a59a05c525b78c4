// Package httputil centralizes JSON responses and domain error translation so
// every handler returns the same error envelope.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "keystone/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; governance payloads are small.
const maxBodyBytes = 1 << 20

var codeStatus = map[dErrors.Code]int{
	dErrors.CodeBadRequest:         http.StatusBadRequest,
	dErrors.CodeInvalidInput:       http.StatusBadRequest,
	dErrors.CodeValidation:         http.StatusUnprocessableEntity,
	dErrors.CodeNotFound:           http.StatusNotFound,
	dErrors.CodeConflict:           http.StatusConflict,
	dErrors.CodeInvariantViolation: http.StatusInternalServerError,
	dErrors.CodeTimeout:            http.StatusGatewayTimeout,
	dErrors.CodeInternal:           http.StatusInternalServerError,
}

// WriteJSON renders v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders a domain error as a JSON envelope. Internal and
// invariant errors omit the description so internals never leak; conflicts
// include any attached state so callers can retry against fresh data.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := map[string]any{"error": string(code)}
	if status < http.StatusInternalServerError {
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
		if details := dErrors.Load(err); len(details) > 0 {
			body["details"] = details
		}
	}
	WriteJSON(w, status, body)
}

// DecodeJSON parses the request body into T. On failure it writes a
// bad_request envelope and returns ok=false so handlers can bail early.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed JSON request body"))
		return req, false
	}
	return req, true
}
