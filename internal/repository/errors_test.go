package repository

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/diagnosis/reservou/internal/apperror"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "hotels_slug_key"})

	constraint, ok := isUniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "hotels_slug_key", constraint)

	_, ok = isUniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = isUniqueViolation(errors.New("boom"))
	assert.False(t, ok)

	_, ok = isUniqueViolation(nil)
	assert.False(t, ok)
}

func TestConflictFor(t *testing.T) {
	slugErr := conflictFor(&pgconn.PgError{Code: "23505", ConstraintName: "hotels_slug_key"})
	assert.True(t, apperror.Is(slugErr, apperror.KindConflict))
	assert.Equal(t, "slug already taken", apperror.From(slugErr).Message)
	assert.ErrorIs(t, slugErr, ErrSlugTaken)

	ownerErr := conflictFor(&pgconn.PgError{Code: "23505", ConstraintName: "hotels_owner_id_key"})
	assert.Equal(t, "user already has a hotel", apperror.From(ownerErr).Message)
	assert.ErrorIs(t, ownerErr, ErrOwnerHasHotel)

	other := errors.New("connection reset")
	assert.Same(t, other, conflictFor(other))
}

func TestMigrate_RejectsBadInput(t *testing.T) {
	assert.EqualError(t, Migrate("", "up"), "DATABASE_URL is not set")
	assert.Error(t, Migrate("postgres://localhost/reservou", "sideways"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}

	ups := 0
	for name := range names {
		base, ok := strings.CutSuffix(name, ".up.sql")
		if !ok {
			continue
		}
		ups++
		assert.True(t, names[base+".down.sql"], "missing down migration for %s", name)
	}
	assert.Equal(t, 2, ups)
	assert.Len(t, entries, 2*ups)
	assert.True(t, names["0002_rate_limits.up.sql"])
}
