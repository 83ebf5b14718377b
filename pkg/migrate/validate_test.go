package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

const validSQL = "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n\n-- +goose Down\n-- +goose StatementBegin\nSELECT 1;\n-- +goose StatementEnd\n"

func TestValidateFS(t *testing.T) {
	cases := map[string]struct {
		files   fstest.MapFS
		wantErr string
	}{
		"valid": {
			files: fstest.MapFS{"20261001090000_init.sql": {Data: []byte(validSQL)}},
		},
		"bad name": {
			files:   fstest.MapFS{"init.sql": {Data: []byte(validSQL)}},
			wantErr: "invalid migration filename",
		},
		"duplicate version": {
			files: fstest.MapFS{
				"20261001090000_a.sql": {Data: []byte(validSQL)},
				"20261001090000_b.sql": {Data: []byte(validSQL)},
			},
			wantErr: "duplicate migration version",
		},
		"missing down": {
			files:   fstest.MapFS{"20261001090000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
			wantErr: "missing \"-- +goose Down\"",
		},
		"unbalanced": {
			files:   fstest.MapFS{"20261001090000_a.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
			wantErr: "unbalanced statement blocks",
		},
		"empty": {
			files:   fstest.MapFS{"README.md": {Data: []byte("notes")}},
			wantErr: "no migrations found",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := ValidateFS(tc.files)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add listing Index!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20261015093000_add_listing_index.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	if err := ValidateFS(os.DirFS(dir)); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add listing index", now); err == nil {
		t.Fatalf("expected second create with the same version to fail")
	}
	if _, err := CreateSQLMigration(dir, "!!!", now); err == nil {
		t.Fatalf("expected empty sanitized name to fail")
	}
}
