package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaultClassification(t *testing.T) {
	cause := errors.New("connection refused")

	transient := NewTransientFault("vehicle_lookup", cause)
	assert.True(t, IsTransient(transient))
	assert.ErrorIs(t, transient, cause)
	assert.Equal(t, "vehicle_lookup: connection refused", transient.Error())

	terminal := NewTerminalFault("catalog_search", cause)
	assert.False(t, IsTransient(terminal))

	// Classification survives further wrapping.
	wrapped := fmt.Errorf("batch run: %w", terminal)
	assert.False(t, IsTransient(wrapped))
}

func TestUnclassifiedErrorsCountTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("mystery failure")))
}
