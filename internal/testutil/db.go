package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/xxxsen/legalrag/internal/config"
	"github.com/xxxsen/legalrag/internal/db"
)

// OpenTestDB connects to the postgres named by TEST_DB_HOST and truncates
// every table. Tests using it are skipped when the variable is unset.
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	ctx := context.Background()
	conn, err := db.Open(ctx, config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "legalrag",
		Password: "legalrag_pass",
		DBName:   "legalrag_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(ctx, conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if _, err := conn.ExecContext(ctx, "TRUNCATE chunks, documents, embedding_cache, qa_logs"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}
