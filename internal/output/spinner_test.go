package output

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunWithSpinner_NoTTY(t *testing.T) {
	// Test binaries run without a terminal, so the action runs directly.
	called := false
	err := RunWithSpinner(context.Background(), "working", func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)

	boom := errors.New("boom")
	err = RunWithSpinner(context.Background(), "working", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
