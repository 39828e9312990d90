package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	uniq := &pq.Error{Code: "23505", Constraint: "pairing_requests_one_pending_per_user"}

	assert.True(t, IsUniqueViolation(uniq))
	assert.True(t, IsUniqueViolation(fmt.Errorf("attach: %w", uniq)))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}
