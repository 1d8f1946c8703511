// Package handler exposes the HTTP API. Every request runs inside one
// store transaction opened by store.Runner.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/prepper/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Errors outside apperr are logged
// and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, ae.Kind.Status(), map[string]string{"error": ae.Message})
}

// decodeJSON reads a JSON body into dst. An empty body is a validation
// error.
func decodeJSON(r *http.Request, dst any) error {
	err := decodeBody(r, dst)
	if errors.Is(err, io.EOF) {
		return apperr.Validation("request body is required")
	}
	return err
}

// decodeOptionalJSON is decodeJSON for bodies that may be absent. An empty
// body, including an empty chunked one, leaves dst untouched.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	err := decodeBody(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// decodeBody returns io.EOF unwrapped for an empty body and a validation
// error for anything unparsable.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return apperr.Validation("invalid JSON body: %v", err)
	}
	return nil
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathInt(r, "id")
}

func parsePathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return v, nil
}

func pathString(r *http.Request, name string) (string, error) {
	v := r.PathValue(name)
	if v == "" {
		return "", apperr.Validation("%s is required", name)
	}
	return v, nil
}

func statusOK(msg string) map[string]string {
	return map[string]string{"status": msg}
}
