package migrations

import (
	"regexp"
	"strings"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	for _, name := range []string{"001_init.sql", "002_sync_claims.sql"} {
		data, err := Files.ReadFile(name)
		if err != nil {
			t.Fatalf("expected embedded migration %s, got error: %v", name, err)
		}
		if len(data) == 0 {
			t.Fatalf("embedded migration %s is empty", name)
		}
	}
}

func TestInitCreatesCollections(t *testing.T) {
	data, err := Files.ReadFile("001_init.sql")
	if err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"bookings", "appointments", "crm_settings"} {
		if !strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("001_init.sql does not create %s", table)
		}
	}
}

func TestMigrationsAreRerunnable(t *testing.T) {
	notGuarded := regexp.MustCompile(`(?i)CREATE (UNIQUE )?(TABLE|INDEX) (?:[^I]|I[^F])`)
	addColumn := regexp.MustCompile(`(?i)ADD COLUMN (?:[^I]|I[^F])`)
	for _, name := range []string{"001_init.sql", "002_sync_claims.sql"} {
		data, err := Files.ReadFile(name)
		if err != nil {
			t.Fatal(err)
		}
		sql := string(data)
		if loc := notGuarded.FindStringIndex(sql); loc != nil {
			t.Errorf("%s: CREATE without IF NOT EXISTS near %q", name, sql[loc[0]:loc[1]])
		}
		if strings.Contains(strings.ToUpper(sql), "ADD PRIMARY KEY") {
			t.Errorf("%s: ADD PRIMARY KEY fails when the table already has one", name)
		}
		if addColumn.MatchString(sql) {
			t.Errorf("%s: ADD COLUMN without IF NOT EXISTS", name)
		}
	}
}
