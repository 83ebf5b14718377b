package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	pgDup := &pgconn.PgError{Code: "23505", ConstraintName: "listings_one_active_per_asset"}
	cases := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{"nil", nil, "", false},
		{"postgres any", fmt.Errorf("insert listing: %w", pgDup), "", true},
		{"postgres named", pgDup, "listings_one_active_per_asset", true},
		{"postgres other constraint", pgDup, "nft_records_asset_key", false},
		{"postgres other code", &pgconn.PgError{Code: "23503"}, "", false},
		{"gorm translated", gorm.ErrDuplicatedKey, "", true},
		{"sqlite", errors.New("UNIQUE constraint failed: listings.asset_id"), "", true},
		{"sqlite column", errors.New("UNIQUE constraint failed: listings.asset_id"), "listings.asset_id", true},
		{"unrelated", errors.New("connection reset"), "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsUniqueViolation(tc.err, tc.constraint))
		})
	}
}
