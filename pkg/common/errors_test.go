package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrapsCause(t *testing.T) {
	err := fmt.Errorf("process: %w", NewAppError(CodeConversionFailed, "Failed to convert PDF to image.", ErrConversion))

	assert.True(t, errors.Is(err, ErrConversion))
	ae, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeConversionFailed, ae.Code)
	assert.Equal(t, "CONVERSION_FAILED: Failed to convert PDF to image.: conversion failed", ae.Error())
}

func TestWrapErrorNil(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))
	assert.EqualError(t, WrapError(ErrStorage, "save"), "save: storage error")
}
