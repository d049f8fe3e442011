package userdb

import (
	"context"
	"fmt"
	"log"
	"strings"
)

type seedUser struct {
	name, email, role, profession, city string
}

var seedUsers = []seedUser{
	// Islamabad
	{"Ali Khan", "ali.k@tech.pk", "admin", "CTO", "Islamabad"},
	{"Sara Ahmed", "sara.a@tech.pk", "user", "Senior Developer", "Islamabad"},
	{"Bilal Saqib", "bilal.s@tech.pk", "user", "Product Manager", "Islamabad"},
	{"Zara Malik", "zara.m@tech.pk", "user", "UX Designer", "Islamabad"},
	{"Osman Ghani", "osman.g@tech.pk", "manager", "Engineering Manager", "Islamabad"},
	// Lahore
	{"Hamza Yasin", "hamza.y@soft.pk", "user", "Frontend Developer", "Lahore"},
	{"Ayesha Omer", "ayesha.o@soft.pk", "user", "Backend Developer", "Lahore"},
	{"Rizwan Ahmed", "rizwan.a@soft.pk", "user", "DevOps Engineer", "Lahore"},
	{"Fatima Noor", "fatima.n@soft.pk", "manager", "HR Manager", "Lahore"},
	{"Hassan Ali", "hassan.a@soft.pk", "user", "QA Engineer", "Lahore"},
	{"Zainab Bibi", "zainab.b@soft.pk", "user", "Intern", "Lahore"},
	// Multan
	{"Kashif Mehmood", "kashif.m@data.pk", "user", "Data Scientist", "Multan"},
	{"Sadia Parveen", "sadia.p@data.pk", "user", "Data Analyst", "Multan"},
	{"Umar Farooq", "umar.f@data.pk", "manager", "Project Manager", "Multan"},
	{"Nida Yasir", "nida.y@data.pk", "user", "Content Writer", "Multan"},
	// Karachi
	{"Fahad Mustafa", "fahad.m@media.pk", "user", "Marketing Specialist", "Karachi"},
	{"Mahira Khan", "mahira.k@media.pk", "admin", "CEO", "Karachi"},
	{"Ahsan Khan", "ahsan.k@media.pk", "user", "Sales Executive", "Karachi"},
}

// Seed wipes the users table and reinserts the dataset, resetting the
// id counter so ids start at 1 on every run.
func (d *DB) Seed(ctx context.Context) error {
	tx, err := d.admin.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("clearing users: %w", err)
	}
	// sqlite_sequence only exists once an AUTOINCREMENT insert has run
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'users'`); err != nil && !strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("resetting id counter: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO users (name, email, role, profession, city) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing seed insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range seedUsers {
		if _, err := stmt.ExecContext(ctx, u.name, u.email, u.role, u.profession, u.city); err != nil {
			return fmt.Errorf("seeding user %s: %w", u.email, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	log.Printf("userdb: seeded %d users", len(seedUsers))
	return nil
}
