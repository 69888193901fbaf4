package http

import (
	"encoding/json"
	"net/http"

	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/service"
)

const (
	statusSuccess = "Success"
	statusFail    = "Fail"
)

// Envelope is the body of every successful response
type Envelope struct {
	Data                any    `json:"data,omitempty"`
	Message             string `json:"message,omitempty"`
	Status              string `json:"status"`
	AuthenticationToken string `json:"authentication_token,omitempty"`
	Items               *int32 `json:"items,omitempty"`
	Pages               *int32 `json:"pages,omitempty"`
}

// ErrorBody is the "error" member of a failed response
type ErrorBody struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, code int, env Envelope) {
	env.Status = statusSuccess
	writeJSON(w, code, env)
}

func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorEnvelope{Error: ErrorBody{Message: message, Status: statusFail}})
}

// writeError maps err to its status code and caller-safe message.
// Internal errors are logged with their detail; the client only sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	code := statusFor(kind)
	if code >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "kind", kind.String(), "error", err)
	} else {
		logger.FromContext(r.Context()).Debug("Request rejected", "path", r.URL.Path, "kind", kind.String(), "error", err)
	}
	writeFail(w, code, service.PublicMessage(err))
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization, service.KindConflict, service.KindConfiguration:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON request body; a malformed body is answered with 400
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}
