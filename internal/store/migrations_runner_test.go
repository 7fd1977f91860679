package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
)

func initTx() *mockTx {
	return &mockTx{execs: []execExpectation{
		{expect: regexp.MustCompile("-- Initial schema for the studio booking store")},
		{expect: regexp.MustCompile("INSERT INTO schema_migrations"), args: []any{"001_init.sql"}},
	}}
}

func claimsTx() *mockTx {
	return &mockTx{execs: []execExpectation{
		{expect: regexp.MustCompile("-- Sync claims")},
		{expect: regexp.MustCompile("INSERT INTO schema_migrations"), args: []any{"002_sync_claims.sql"}},
	}}
}

func TestApplyMigrationsUntrackedDatabase(t *testing.T) {
	// Covers both an empty database and one shared with other tables
	// (e.g. website_users): nothing is recorded without running it.
	tx1, tx2 := initTx(), claimsTx()
	pool := &mockPool{
		t: t,
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		queries: []queryExpectation{
			{expect: regexp.MustCompile(`SELECT version FROM schema_migrations`)},
		},
		txs: []*mockTx{tx1, tx2},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("expected migrations to apply, got error: %v", err)
	}

	pool.assertDone()
	tx1.assertDone(t)
	tx2.assertDone(t)
	if !tx1.committed || !tx2.committed {
		t.Fatalf("expected both migrations committed")
	}
}

func TestApplyMigrationsPartiallyApplied(t *testing.T) {
	tx2 := claimsTx()
	pool := &mockPool{
		t: t,
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		queries: []queryExpectation{
			{expect: regexp.MustCompile(`SELECT version FROM schema_migrations`), rows: [][]any{{"001_init.sql"}}},
		},
		txs: []*mockTx{tx2},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("ApplyMigrations() error = %v", err)
	}
	pool.assertDone()
	tx2.assertDone(t)
}

func TestApplyMigrationsAllAlreadyApplied(t *testing.T) {
	pool := &mockPool{
		t: t,
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		queries: []queryExpectation{
			{expect: regexp.MustCompile(`SELECT version FROM schema_migrations`), rows: [][]any{{"001_init.sql"}, {"002_sync_claims.sql"}}},
		},
	}

	if err := ApplyMigrations(context.Background(), pool); err != nil {
		t.Fatalf("expected no-op migrations, got error: %v", err)
	}

	pool.assertDone()
}

func TestApplyMigrationsRollsBackFailure(t *testing.T) {
	boom := errors.New(`relation "bookings" does not exist`)
	tx := &mockTx{execs: []execExpectation{
		{expect: regexp.MustCompile("-- Sync claims"), err: boom},
	}}
	pool := &mockPool{
		t: t,
		execs: []execExpectation{
			{expect: regexp.MustCompile("CREATE TABLE IF NOT EXISTS schema_migrations")},
		},
		queries: []queryExpectation{
			{expect: regexp.MustCompile(`SELECT version FROM schema_migrations`), rows: [][]any{{"001_init.sql"}}},
		},
		txs: []*mockTx{tx},
	}

	err := ApplyMigrations(context.Background(), pool)
	if !errors.Is(err, boom) {
		t.Fatalf("ApplyMigrations() error = %v, want %v", err, boom)
	}
	if !tx.rolled || tx.committed {
		t.Errorf("failed migration should roll back (rolled=%t committed=%t)", tx.rolled, tx.committed)
	}
}
