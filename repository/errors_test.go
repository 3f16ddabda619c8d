package repository

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_x"}, ErrConflict},
		{"foreign key", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, ErrNotFound},
		{"check", &pgconn.PgError{Code: pgerrcode.CheckViolation}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.in), tt.want)
		})
	}

	assert.Nil(t, mapError(nil))
	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestSentinelHelpers(t *testing.T) {
	assert.ErrorIs(t, Invalid("rate %d", 5), ErrValidation)
	assert.ErrorIs(t, Conflict("dup"), ErrConflict)
	err := Transition("submission", "placed", "sourced")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "placed")
}

func TestPageNormalize(t *testing.T) {
	p := Page{}.Normalize(50, 100)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = Page{Limit: 500, Offset: -3}.Normalize(50, 100)
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 0, p.Offset)
}
