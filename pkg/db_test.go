package pkg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/stridept/stridept-backend/pkg"
)

func TestIsUniqueViolationError(t *testing.T) {
	assert.True(t, pkg.IsUniqueViolationError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, pkg.IsUniqueViolationError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, pkg.IsUniqueViolationError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, pkg.IsUniqueViolationError(errors.New("connection reset")))
	assert.False(t, pkg.IsUniqueViolationError(nil))
}
