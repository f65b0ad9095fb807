package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ruteri/campuscred-backend/api"
	"github.com/ruteri/campuscred-backend/interfaces"
	"github.com/ruteri/campuscred-backend/session"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// RequestError pins the status code of an error.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func badRequest(msg string) error {
	return &RequestError{StatusCode: http.StatusBadRequest, Err: errors.New(msg)}
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var re *RequestError
	switch {
	case errors.As(err, &re):
		return re.StatusCode
	case errors.Is(err, interfaces.ErrValidation), interfaces.IsConflict(err):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, interfaces.ErrForbidden), errors.Is(err, interfaces.ErrLinkInvalid):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrClaimNotFound), errors.Is(err, interfaces.ErrEvidenceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers a failed JSON request. Authorization failures carry a
// generic message only.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch code {
	case http.StatusUnauthorized:
		msg = "Wallet not connected"
	case http.StatusForbidden:
		msg = "Access denied"
	case http.StatusInternalServerError:
		h.log.Error("Request failed", "err", err, "path", r.URL.Path)
	}
	writeJSON(w, code, api.ErrorResponse{Success: false, Error: userMessage(msg)})
}

// userMessage strips the taxonomy prefix from an error message.
func userMessage(msg string) string {
	return capitalize(strings.TrimPrefix(msg, interfaces.ErrValidation.Error()+": "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// decodeJSON reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("Invalid JSON body")
	}
	return nil
}

// wantsJSON reports whether the client asked for a JSON answer rather than
// a browser redirect.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}
