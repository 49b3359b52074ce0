package sqlstore

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// dialect captures the SQL differences between Postgres and SQLite.
type dialect struct {
	name string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// jsonParam wraps a placeholder bound to a JSON string.
	jsonParam func(p string) string
	// fieldText extracts a top-level JSON field as text.
	fieldText func(field string) string
	now       string
	schema    func(table string) []string
	quote     func(table string) string
}

var postgres = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	jsonParam:   func(p string) string { return p + "::jsonb" },
	fieldText:   func(p string) string { return "data->>" + p },
	now:         "now()",
	quote:       pq.QuoteIdentifier,
	schema: func(table string) []string {
		q := pq.QuoteIdentifier(table)
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + q + ` (
				collection TEXT NOT NULL,
				doc_id TEXT NOT NULL,
				data JSONB NOT NULL,
				version BIGINT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (collection, doc_id)
			)`,
			`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier(table+"_alias_idx") + ` ON ` + q + ` (collection, (data->>'id'))`,
		}
	},
}

var sqlite = dialect{
	name:        "sqlite",
	placeholder: func(int) string { return "?" },
	jsonParam:   func(p string) string { return p },
	fieldText:   func(p string) string { return "json_extract(data, '$.' || " + p + ")" },
	now:         "CURRENT_TIMESTAMP",
	quote:       quoteSQLite,
	schema: func(table string) []string {
		q := quoteSQLite(table)
		return []string{
			`CREATE TABLE IF NOT EXISTS ` + q + ` (
				collection TEXT NOT NULL,
				doc_id TEXT NOT NULL,
				data TEXT NOT NULL,
				version INTEGER NOT NULL,
				updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (collection, doc_id)
			)`,
			`CREATE INDEX IF NOT EXISTS ` + quoteSQLite(table+"_alias_idx") + ` ON ` + q + ` (collection, json_extract(data, '$.id'))`,
		}
	},
}

func quoteSQLite(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders renders bind parameters from..from+n-1 separated by commas.
func (d dialect) placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}
