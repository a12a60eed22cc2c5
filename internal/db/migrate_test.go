package db

import (
	"strings"
	"testing"
)

func TestSplitSQL(t *testing.T) {
	statements := splitSQL(`
-- users table
CREATE TABLE users (
    id BIGINT PRIMARY KEY
);

CREATE INDEX idx_users ON users (id);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(statements), statements)
	}
	if !strings.Contains(statements[0], "CREATE TABLE users") {
		t.Fatalf("unexpected first statement: %q", statements[0])
	}
	if strings.Contains(statements[0], "-- users table") {
		t.Fatal("comment lines must be stripped")
	}
}

func TestSplitSQLKeepsTrailingStatement(t *testing.T) {
	statements := splitSQL("UPDATE users SET x = 1")
	if len(statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(statements))
	}
}

func TestMigrationContentSplitsDownSection(t *testing.T) {
	up := strings.Split(`CREATE TABLE a (id int);
-- +migrate Down
DROP TABLE a;
`, "-- +migrate Down")[0]
	statements := splitSQL(up)
	if len(statements) != 1 || strings.Contains(statements[0], "DROP TABLE") {
		t.Fatalf("down section must not be applied: %#v", statements)
	}
}
