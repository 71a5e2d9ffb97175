package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrCodeInvalidQuery, "query is empty")
	assert.Equal(t, "[INVALID_QUERY] query is empty", err.Error())

	cause := stderrors.New("connection reset")
	wrapped := ObjectUnavailable("failed to fetch object", cause)
	assert.Equal(t, "[OBJECT_UNAVAILABLE] failed to fetch object: connection reset", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestIsCodeThroughWrapping(t *testing.T) {
	base := NoteNotFound("abc")
	wrapped := fmt.Errorf("commit: %w", base)

	assert.True(t, IsCode(wrapped, ErrCodeNoteNotFound))
	assert.False(t, IsCode(wrapped, ErrCodeInvalidInput))
	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeNoteNotFound))
}

func TestGetCodeFromError(t *testing.T) {
	assert.Equal(t, ErrCodeMissingScope, GetCodeFromError(MissingScope("owner required"), ErrCodeInvalidInput))
	assert.Equal(t, ErrCodeInvalidInput, GetCodeFromError(stderrors.New("plain"), ErrCodeInvalidInput))
}

func TestMalformedOutputKeepsRawText(t *testing.T) {
	err := MalformedOutput("{not json", stderrors.New("unexpected EOF"))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeMalformedOutput, e.Code)
	assert.Equal(t, "{not json", e.Context["raw_output"])
}

func TestWithContext(t *testing.T) {
	err := InvalidLocator("ftp://x", "unsupported scheme").WithContext("stage", "fetch")
	assert.Equal(t, "ftp://x", err.Context["uri"])
	assert.Equal(t, "fetch", err.Context["stage"])
}
