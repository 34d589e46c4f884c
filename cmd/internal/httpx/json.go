// Package httpx holds the JSON and validation helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrExtraData is returned by DecodeJSON when the body holds more than one JSON value.
var ErrExtraData = errors.New("extra data after JSON object")

// APIError is the body of every error response.
type APIError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

// ErrorResponse wraps APIError as {"error":{...}}.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteJSON encodes v with the given status. Responses are never cached.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error":{"code","message"}}.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: msg}})
}

// WriteRedirectError is WriteError with a client-side redirect hint.
func WriteRedirectError(w http.ResponseWriter, status int, code, msg, redirect string) {
	WriteJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: msg, Redirect: redirect}})
}

// DecodeJSON reads exactly one JSON object of at most maxBytes into dst.
// Unknown fields are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrExtraData
	}
	return nil
}

// IsTooLarge reports whether err came from the MaxBytesReader limit.
func IsTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// WriteDecodeError maps a DecodeJSON failure onto 413 or 400.
func WriteDecodeError(w http.ResponseWriter, err error) {
	if IsTooLarge(err) {
		WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
		return
	}
	WriteError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
}
