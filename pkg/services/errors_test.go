package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServiceError(t *testing.T) {
	err := NewValidationError("PublishWorkflow", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)

	assert.Equal(t, "PublishWorkflow: workflow name is required", err.Error())
	assert.ErrorIs(t, err, ErrWorkflowNameRequired)
	assert.True(t, IsValidationError(err))
	assert.False(t, IsConflictError(err))

	wrapped := fmt.Errorf("outer: %w", NewConflictError("Update", "CANNOT_MODIFY_PUBLISHED", "", ErrCannotModifyPublished))
	assert.True(t, IsConflictError(wrapped))
	assert.Contains(t, wrapped.Error(), "Update: cannot modify the structure of a published workflow")

	var serviceErr *ServiceError
	assert.True(t, errors.As(wrapped, &serviceErr))
	assert.Equal(t, "CANNOT_MODIFY_PUBLISHED", serviceErr.Code)
}
