package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	t.Run("message is the error text", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "Category not found")
		assert.Equal(t, "Category not found", err.Error())
	})

	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "Category not found")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidInput))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load category: %w", NewDomainError("NOT_FOUND", "gone"))
		assert.ErrorIs(t, err, ErrNotFound)

		var domainErr *DomainError
		assert.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})

	t.Run("does not match plain errors", func(t *testing.T) {
		assert.False(t, ErrNotFound.Is(errors.New("NOT_FOUND")))
	})
}
