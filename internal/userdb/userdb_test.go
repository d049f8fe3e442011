package userdb

import (
	"context"
	"strings"
	"testing"
)

func openSeeded(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir() + "/users.sqlite")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return db
}

func TestSeedPopulatesDataset(t *testing.T) {
	db := openSeeded(t)

	rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM users")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["n"] != "18" {
		t.Errorf("total users = %v, want 18", rows[0]["n"])
	}

	byCity := map[string]string{
		"Islamabad": "5",
		"Lahore":    "6",
		"Multan":    "4",
		"Karachi":   "3",
	}
	for city, want := range byCity {
		rows, err := db.Query(context.Background(),
			"SELECT COUNT(*) AS n FROM users WHERE city='"+city+"'")
		if err != nil {
			t.Fatalf("query %s: %v", city, err)
		}
		if rows[0]["n"] != want {
			t.Errorf("%s count = %v, want %s", city, rows[0]["n"], want)
		}
	}
}

func TestSeedIsIdempotentAndResetsIDs(t *testing.T) {
	db := openSeeded(t)

	if err := db.Seed(context.Background()); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	rows, err := db.Query(context.Background(), "SELECT id, name FROM users ORDER BY id LIMIT 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != "1" {
		t.Errorf("first row after re-seed = %v, want id 1", rows)
	}
	if rows[0]["name"] != "Ali Khan" {
		t.Errorf("first user = %v, want Ali Khan", rows[0]["name"])
	}
}

func TestQueryReturnsIntegersAsDecimalStrings(t *testing.T) {
	db := openSeeded(t)

	rows, err := db.Query(context.Background(), "SELECT id, 9007199254740993 AS big FROM users WHERE email='ali.k@tech.pk'")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["id"] != "1" {
		t.Errorf("id = %v (%T), want decimal string", rows[0]["id"], rows[0]["id"])
	}
	if rows[0]["big"] != "9007199254740993" {
		t.Errorf("big = %v, want exact decimal string", rows[0]["big"])
	}
}

func TestReadPoolRefusesWrites(t *testing.T) {
	db := openSeeded(t)

	_, err := db.Query(context.Background(), "DELETE FROM users")
	if err == nil || !strings.Contains(strings.ToLower(err.Error()), "readonly") {
		t.Fatalf("write through read pool: err = %v, want readonly violation", err)
	}

	rows, err := db.Query(context.Background(), "SELECT COUNT(*) AS n FROM users")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows[0]["n"] != "18" {
		t.Errorf("users were mutated: count = %v", rows[0]["n"])
	}
}

func TestQueryEmptyResultIsEmptyArray(t *testing.T) {
	db := openSeeded(t)

	rows, err := db.Query(context.Background(), "SELECT * FROM users WHERE city='Peshawar'")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("rows = %v, want empty non-nil slice", rows)
	}
}
