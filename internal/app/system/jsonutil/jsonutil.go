// Package jsonutil writes JSON responses and decodes JSON request bodies for
// the /api handlers.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/schedulehub/internal/app/system/limits"
)

// MaxBodyBytes bounds request bodies accepted by Decode.
const MaxBodyBytes = limits.MaxJSONBody

// ErrorBody is the envelope for every non-2xx JSON response.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Write encodes v with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes an error envelope. code is a short machine-readable token.
func Error(w http.ResponseWriter, status int, code, message string) {
	Write(w, status, ErrorBody{Error: code, Message: message})
}

// Invalid writes a 422 with per-field messages.
func Invalid(w http.ResponseWriter, message string, fields map[string]string) {
	Write(w, http.StatusUnprocessableEntity, ErrorBody{Error: "invalid", Message: message, Fields: fields})
}

// Decode reads a single JSON object into dst. Unknown fields are rejected.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.New("Content-Type must be application/json")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syn *json.SyntaxError
		var typ *json.UnmarshalTypeError
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		case errors.As(err, &syn):
			return fmt.Errorf("malformed JSON at offset %d", syn.Offset)
		case errors.As(err, &typ):
			return fmt.Errorf("field %q has the wrong type", typ.Field)
		case errors.As(err, &tooBig):
			return errors.New("request body is too large")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return fmt.Errorf("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must hold a single JSON object")
	}
	return nil
}
