package repository

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"lp-tracker/internal/config"
	"lp-tracker/internal/database"
	"lp-tracker/internal/db"

	"github.com/rs/zerolog"
)

func newTestDB(t *testing.T) (*sql.DB, *db.Queries) {
	t.Helper()
	cfg := &config.Config{DBPath: filepath.Join(t.TempDir(), "test.db")}

	sqlDB, err := database.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB, db.New(sqlDB)
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)}
}
