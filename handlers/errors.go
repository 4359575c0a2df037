// handlers/errors.go
package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"gorm.io/gorm"
)

// The error taxonomy handlers speak in. Each maps to exactly one status code:
// ValidationError 400, AuthError 401, NotFoundError 404, UpstreamError 500.
// Absent and not-owned records both surface as NotFoundError so responses
// never reveal whether another user's record exists.

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type AuthError struct {
	Msg string
}

func (e AuthError) Error() string { return e.Msg }

type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string { return e.Resource + " not found" }

type UpstreamError struct {
	Op  string
	Err error
}

func (e UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e UpstreamError) Unwrap() error { return e.Err }

// dbError wraps a gorm error, translating record-not-found into the merged
// not-found/not-owned response.
func dbError(resource string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFoundError{Resource: resource}
	}
	return UpstreamError{Op: "db " + resource, Err: err}
}

// writeError maps an error from the taxonomy onto its status code and a JSON
// {"error": ...} body. Upstream failures are logged with their cause; the
// client only sees a generic message.
func writeError(w http.ResponseWriter, err error) {
	var ve ValidationError
	var ae AuthError
	var nfe NotFoundError
	var ue UpstreamError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Msg})
	case errors.As(err, &ae):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": ae.Msg})
	case errors.As(err, &nfe):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nfe.Error()})
	case errors.As(err, &ue):
		log.Printf("upstream error: %v", ue)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		log.Printf("unclassified error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
