package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/apperrors"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantIs   error
		wantCode string
	}{
		{name: "record not found", err: gorm.ErrRecordNotFound, wantIs: apperrors.ErrNotFound, wantCode: "not_found"},
		{name: "gorm duplicated key", err: gorm.ErrDuplicatedKey, wantIs: apperrors.ErrConflict, wantCode: "conflict"},
		{
			name:     "pg unique violation",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uni_users_email"}),
			wantIs:   apperrors.ErrConflict,
			wantCode: "conflict",
		},
		{name: "other pg error", err: &pgconn.PgError{Code: "57014"}, wantCode: "database_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err)
			if tt.wantIs != nil && !errors.Is(got, tt.wantIs) {
				t.Fatalf("expected %v, got %v", tt.wantIs, got)
			}
			if code := apperrors.Code(got); code != tt.wantCode {
				t.Fatalf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestTranslateErrorNil(t *testing.T) {
	if err := translateError(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
