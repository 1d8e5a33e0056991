// internal/database/migration_test.go
package database

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("open embedded migrations: %v", err)
	}
	defer source.Close()

	first, err := source.First()
	if err != nil || first != 1 {
		t.Fatalf("First() = %d, %v", first, err)
	}

	tests := []struct {
		name string
		read func(uint) (io.ReadCloser, string, error)
		want string
	}{
		{"up", source.ReadUp, "CREATE TABLE"},
		{"down", source.ReadDown, "DROP TABLE"},
	}
	for _, tt := range tests {
		r, identifier, err := tt.read(first)
		if err != nil {
			t.Fatalf("%s: read: %v", tt.name, err)
		}
		body, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatalf("%s: read body: %v", tt.name, err)
		}
		if identifier != "create_trigger_events" {
			t.Fatalf("%s: identifier=%q", tt.name, identifier)
		}
		sql := strings.ToUpper(string(body))
		if !strings.Contains(sql, tt.want) || !strings.Contains(sql, "TRIGGER_EVENTS") {
			t.Fatalf("%s: unexpected script %q", tt.name, body)
		}
	}

	if _, err := source.Next(first); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Next(%d) = %v, want fs.ErrNotExist", first, err)
	}
}
