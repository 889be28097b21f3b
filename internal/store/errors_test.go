package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("create: %w", NotFoundf("product %d not found", 9))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "create: product 9 not found", err.Error())

	assert.True(t, IsClientError(Invalidf("bad")))
	assert.True(t, IsClientError(err))
	assert.True(t, IsClientError(Conflictf("dup")))
	assert.False(t, IsClientError(errors.New("connection reset")))
	assert.False(t, IsClientError(nil))
}
