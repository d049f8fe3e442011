// Package tools holds the agent's tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/farhanshk/dbchat/internal/ai"
	"github.com/farhanshk/dbchat/internal/userdb"
)

// DBQuery executes a single read-only SQL statement against the user
// database and returns the rows as a JSON array of records. Every
// failure mode (guard rejection, execution error, serialization fault)
// is folded into a failure result so the agent loop can feed it back to
// the model.
type DBQuery struct {
	db *userdb.DB
}

func NewDBQuery(db *userdb.DB) *DBQuery {
	return &DBQuery{db: db}
}

func (t *DBQuery) Name() string { return "db_query" }

func (t *DBQuery) Description() string {
	return "Execute a SQL query to fetch data from the database"
}

func (t *DBQuery) Parameters() *ai.ParamSchema {
	return &ai.ParamSchema{
		Type: "object",
		Properties: map[string]*ai.ParamSchema{
			"query": {Type: "string", Description: "The SQLite SELECT query to execute"},
		},
		Required: []string{"query"},
	}
}

func (t *DBQuery) Execute(ctx context.Context, args json.RawMessage) ai.InvocationResult {
	payload, err := t.run(ctx, args)
	if err != nil {
		return ai.Failure(err)
	}
	return ai.Success(payload)
}

// run classifies every failure mode as a *ai.ToolError: bad arguments
// and guard rejections are ErrToolRejected, database faults are
// ErrToolExecution, and marshal faults are ErrSerialization.
func (t *DBQuery) run(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", &ai.ToolError{Type: ai.ErrToolRejected, Message: fmt.Sprintf("invalid arguments: %v", err)}
	}
	if params.Query == "" {
		return "", &ai.ToolError{Type: ai.ErrToolRejected, Message: "missing required parameter: query"}
	}

	log.Printf("tool: db_query: %s", params.Query)

	if err := CheckReadOnly(params.Query); err != nil {
		return "", &ai.ToolError{Type: ai.ErrToolRejected, Message: fmt.Sprintf("query rejected: %v", err)}
	}

	records, err := t.db.Query(ctx, params.Query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &ai.ToolError{Type: ai.ErrToolExecution, Message: "query timed out"}
		}
		return "", &ai.ToolError{Type: ai.ErrToolExecution, Message: fmt.Sprintf("error executing query: %v", err)}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return "", &ai.ToolError{Type: ai.ErrSerialization, Message: fmt.Sprintf("could not serialize query result: %v", err)}
	}
	return string(payload), nil
}

var _ ai.Tool = (*DBQuery)(nil)
