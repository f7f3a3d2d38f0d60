package web

// errors.go renders every handler error the same way: the technical error is
// logged with the request id, and the client receives the user message from
// core.MapError as JSON (API routes) or HTML (pages).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/cdm/internal/core"
	"github.com/JonMunkholm/cdm/internal/store"
	"github.com/JonMunkholm/cdm/internal/web/templates"
)

var (
	errBodyTooLarge  = errors.New("request body too large")
	errInvalidBody   = errors.New("invalid request body")
	errStoreDisabled = errors.New("document store not configured")
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", chimw.GetReqID(r.Context()),
	)

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// statusFor picks the response status for a handler error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge), errors.Is(err, core.ErrTextTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyDocuments), errors.Is(err, errStoreDisabled):
		return http.StatusServiceUnavailable
	case core.IsUserFacing(err) && documentFault(core.MapError(err).Code):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// documentFault reports whether a support code blames the submitted document
// rather than the service.
func documentFault(code string) bool {
	for _, prefix := range []string{"CLS", "EXT", "MAP", "VAL"} {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorPage(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// wantsJSON reports whether the client should get a JSON error body.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
