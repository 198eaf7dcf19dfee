package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	assert.NoError(t, Run(func() error { return nil }))
	assert.ErrorIs(t, Run(func() error { return assert.AnError }), assert.AnError)

	err := Run(func() error { panic("boom") })
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, "panic: boom", err.Error())
	assert.NotEmpty(t, pe.Stack)
}
