package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes shared by every service.
const (
	CodeInternal        = "internal_error"
	MessageInternal     = "Internal server error"
	CodeUnavailable     = "unavailable"
	MessageUnavailable  = "Service unavailable"
	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// ErrorBody is the body of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps an ErrorBody as {"err": {...}}.
type ErrorEnvelope struct {
	Err ErrorBody `json:"err"`
}

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	// Handle nil payload
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		RespondInternalError(w)
		return
	}
	w.Header().Set(headerContentType, mimeApplicationJSON)
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

// RespondError writes the error envelope with the given status.
func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	RespondJSON(w, logger, status, ErrorEnvelope{Err: ErrorBody{Code: code, Message: message}})
}

// RespondInternalError writes the generic 500 envelope. It never fails to encode.
func RespondInternalError(w http.ResponseWriter) {
	w.Header().Set(headerContentType, mimeApplicationJSON)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"err":{"code":"` + CodeInternal + `","message":"` + MessageInternal + `"}}`))
}
