package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	entries []map[string]interface{}
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.entries = append(l.entries, fields)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("missing file", nil), CategoryValidation},
		{"transport", NewTransportError("risk model", context.DeadlineExceeded), CategoryTransport},
		{"backend status", NewBackendStatusError("image classifier", 502, "bad gateway"), CategoryBackend},
		{"backend decode", NewBackendDecodeError("risk model", stderrors.New("unexpected EOF")), CategoryBackend},
		{"wrapped", fmt.Errorf("submit: %w", NewTransportError("risk model", stderrors.New("refused"))), CategoryTransport},
		{"plain", stderrors.New("something"), CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	err := NewTransportError("risk model", context.Canceled)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.True(t, IsCode(fmt.Errorf("x: %w", err), ErrCodeTransportFailed))
	assert.False(t, IsCode(err, ErrCodeBackendFailed))
}

func TestBackendStatusError_KeepsStatus(t *testing.T) {
	err := NewBackendStatusError("image classifier", 503, "down")
	assert.Equal(t, 503, err.StatusCode)
	assert.Contains(t, err.Error(), "BACKEND_FAILED")
	assert.Contains(t, err.Error(), "down")
}

func TestErrorHandler_WriteJSON_GenericBody(t *testing.T) {
	log := &recordingLogger{}
	h := NewErrorHandler(log)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api-route", nil)

	h.WriteJSON(rec, req, http.StatusInternalServerError, "Something went wrong",
		NewBackendStatusError("image classifier", 422, `{"error":"Invalid file type"}`))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Something went wrong"}, body)

	require.Len(t, log.entries, 1)
	assert.Equal(t, "BACKEND_FAILED", log.entries[0]["errorCode"])
	assert.Equal(t, CategoryBackend, log.entries[0]["errorCategory"])
	assert.Equal(t, 422, log.entries[0]["backendStatus"])
	assert.Equal(t, "/api-route", log.entries[0]["path"])
}

func TestErrorHandler_WriteJSON_NilErrorSkipsLog(t *testing.T) {
	log := &recordingLogger{}
	rec := httptest.NewRecorder()

	NewErrorHandler(log).WriteJSON(rec, nil, http.StatusBadRequest, "No file provided", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, log.entries)
}
