package tools

import (
	"github.com/farhanshk/dbchat/internal/ai"
	"github.com/farhanshk/dbchat/internal/userdb"
)

// BuildRegistry creates a Registry with all tools wired to the user
// database.
func BuildRegistry(db *userdb.DB) *ai.Registry {
	r := ai.NewRegistry()
	r.Register(NewDBQuery(db))
	return r
}
