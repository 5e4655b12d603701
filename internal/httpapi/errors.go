package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"warm-outreach/internal/apperr"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// WriteAppError maps an apperr code to its HTTP status. Unknown errors are
// logged and reported as 500 without detail.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case apperr.CodeMissingIdentity, apperr.CodeInvalidSubmission, apperr.CodeConfigInvalid:
		status = http.StatusBadRequest
	case apperr.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.CodeTransportFailure:
		status = http.StatusBadGateway
	case apperr.CodeNoPendingWork:
		status = http.StatusOK
	}
	if code == "" {
		log.Printf("level=error msg=\"unhandled\" request_id=%s path=%s err=%v", RequestIDFrom(r.Context()), r.URL.Path, err)
		WriteError(w, r, status, "internal_error", "internal server error")
		return
	}
	WriteError(w, r, status, strings.ToLower(string(code)), apperr.MessageOf(err))
}
