// Package pgtest provisions a migrated Postgres for integration tests.
//
// Tests run against HAPPYAUTO_TEST_DSN when set. With HAPPYAUTO_TESTCONTAINERS=1
// a throwaway postgres:16-alpine container is started from TestMain instead.
// Otherwise Pool skips the calling test. Packages share one database, so run
// DB-backed tests with -p 1.
package pgtest

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"happyauto/migrations"
)

const (
	envDSN            = "HAPPYAUTO_TEST_DSN"
	envTestcontainers = "HAPPYAUTO_TESTCONTAINERS"
)

var containerDSN string

// Main wraps m.Run, starting a container first when requested.
func Main(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	if os.Getenv(envTestcontainers) != "1" || os.Getenv(envDSN) != "" {
		return m.Run()
	}
	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("happyauto_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Printf("failed to start postgres testcontainer: %v", err)
		return 1
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate postgres container: %v", err)
		}
	}()

	containerDSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("failed to get connection string from container: %v", err)
		return 1
	}
	return m.Run()
}

// Pool returns a pool on a migrated, truncated database, or skips the test.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(envDSN)
	if dsn == "" {
		dsn = containerDSN
	}
	if dsn == "" {
		t.Skipf("%s not set and %s!=1; skipping DB-backed test", envDSN, envTestcontainers)
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE delivery_events, deliveries, drivers, vehicle_rates"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}
