package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, http.StatusCreated, map[string]any{"id": "abc"}, "created")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	env := decodeEnvelope(t, rec)
	assert.Equal(t, "success", env.Status)
	assert.Equal(t, "created", env.Message)
	assert.Zero(t, env.Code)
}

func TestWriteErrorApplicationError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NotFound("version %d not found", 3), false)

	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, http.StatusNotFound, env.Code)
	assert.Equal(t, "version 3 not found", env.Message)
}

func TestWriteErrorHidesInternalCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connection refused")

	rec := httptest.NewRecorder()
	WriteError(rec, Database("failed to list versions", cause), false)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "failed to list versions", env.Message)
	assert.NotContains(t, env.Message, "connection refused")
}

func TestWriteErrorDebugExposesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connection refused")

	rec := httptest.NewRecorder()
	WriteError(rec, Database("failed to list versions", cause), true)

	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Message, "connection refused")
}

func TestWriteErrorEmptyMessageFallsBack(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, &Error{Code: http.StatusInternalServerError}, false)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "internal server error", env.Message)
}

func TestWriteErrorUnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("something unexpected"), false)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "internal server error", env.Message)
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsConflict(Conflict("x")))
	assert.True(t, IsValidation(Validation("x")))

	assert.False(t, IsNotFound(Conflict("x")))
	assert.False(t, IsConflict(errors.New("plain")))

	// Predicates see through wrapping.
	wrapped := Database("outer", NotFound("inner"))
	assert.False(t, IsNotFound(wrapped))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Database("wrapper", cause)
	assert.True(t, errors.Is(err, cause))
}
