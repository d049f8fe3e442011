package tools

import (
	"fmt"
	"strings"
)

// CheckReadOnly is the syntactic allowlist guard for the query tool: it
// accepts only a single statement whose leading keyword is SELECT (or
// WITH, for CTEs that resolve to a SELECT). It deliberately is not a
// SQL parser; the engine-level query_only pragma backs it up.
func CheckReadOnly(query string) error {
	stripped := stripComments(query)
	stmt := strings.TrimSpace(stripped)
	stmt = strings.TrimSuffix(stmt, ";")
	if stmt == "" {
		return fmt.Errorf("empty query")
	}

	if n := countStatements(stmt); n > 1 {
		return fmt.Errorf("multiple statements are not allowed (got %d)", n)
	}

	keyword := leadingKeyword(stmt)
	switch keyword {
	case "SELECT":
		return nil
	case "WITH":
		if !strings.Contains(strings.ToUpper(stmt), "SELECT") {
			return fmt.Errorf("WITH clause must resolve to a SELECT")
		}
		return nil
	default:
		return fmt.Errorf("only SELECT queries are allowed, got %q", keyword)
	}
}

// countStatements counts semicolon-separated statements, ignoring
// semicolons inside single-quoted string literals.
func countStatements(stmt string) int {
	n := 1
	inQuote := false
	for _, r := range stmt {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			n++
		}
	}
	return n
}

func leadingKeyword(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(strings.Trim(fields[0], "("))
}

// stripComments removes -- line comments and /* */ block comments so a
// commented-out prefix cannot hide the real leading keyword.
func stripComments(q string) string {
	var b strings.Builder
	inLine, inBlock, inQuote := false, false, false
	runes := []rune(q)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inLine:
			if r == '\n' {
				inLine = false
				b.WriteRune(r)
			}
		case inBlock:
			if r == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				inBlock = false
				i++
			}
		case inQuote:
			b.WriteRune(r)
			if r == '\'' {
				inQuote = false
			}
		case r == '\'':
			inQuote = true
			b.WriteRune(r)
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			inLine = true
			i++
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			inBlock = true
			i++
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
