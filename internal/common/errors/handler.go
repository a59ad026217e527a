// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler turns classified errors into generic JSON responses. The
// classification and the original cause only reach the log.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// WriteJSON logs err with its classification and writes {"error": message}
// with the given status. message is what the caller is allowed to see.
func (h *ErrorHandler) WriteJSON(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if err != nil {
		h.Log(r, err)
	}
	WriteJSONError(w, status, message)
}

// Log records err with its code, category and details.
func (h *ErrorHandler) Log(r *http.Request, err error) {
	stdErr := Normalize(err)
	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"errorCategory": GetErrorCategory(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
	}
	if stdErr.StatusCode != 0 {
		fields["backendStatus"] = stdErr.StatusCode
	}
	if r != nil {
		fields["method"] = r.Method
		fields["path"] = r.URL.Path
	}
	h.logger.Error("request failed", fields)
}

// WriteJSONError writes {"error": message}.
func WriteJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
