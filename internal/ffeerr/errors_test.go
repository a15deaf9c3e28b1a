package ffeerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"flowforge-engine/internal/ffeerr"
)

func TestError_MessageIncludesOpAndKind(t *testing.T) {
	err := ffeerr.New(ffeerr.NotFound, "Registry.CreateBlock", nil)
	assert.Equal(t, "Registry.CreateBlock: NotFound", err.Error())
}

func TestError_MessageIncludesCause(t *testing.T) {
	cause := errors.New("boom")
	err := ffeerr.New(ffeerr.Instantiation, "Registry.CreateBlock", cause)
	assert.Equal(t, "Registry.CreateBlock: Instantiation: boom", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := ffeerr.New(ffeerr.Instantiation, "op", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_IsMatchesByKindOnly(t *testing.T) {
	err := ffeerr.New(ffeerr.NotFound, "Registry.CreateBlock", errors.New("detail"))
	assert.True(t, errors.Is(err, ffeerr.Of(ffeerr.NotFound)))
	assert.False(t, errors.Is(err, ffeerr.Of(ffeerr.NullArgument)))
}

func TestError_IsRejectsNonMatchingErrorType(t *testing.T) {
	err := ffeerr.New(ffeerr.NotFound, "op", nil)
	assert.False(t, errors.Is(err, errors.New("plain error")))
}

func TestKind_StringCoversEveryKind(t *testing.T) {
	kinds := []ffeerr.Kind{
		ffeerr.NullArgument, ffeerr.ConfigurationMismatch, ffeerr.ObjectAlreadyExists,
		ffeerr.InstanceAddFailed, ffeerr.CommandFailed, ffeerr.NotFound,
		ffeerr.Instantiation, ffeerr.NotImplemented,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "Unknown", k.String())
	}
}
