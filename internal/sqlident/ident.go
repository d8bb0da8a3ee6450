// Package sqlident provides the per-dialect identifier quoting rules and
// the pre-execute SQL injection guard shared by every source/destination
// adapter. Grounded on sqldef's schema/identifier.go normalization rules
// and the original poa implementation's _wrap_name helper.
package sqlident

import (
	"strings"

	"github.com/markstefanovic/poa/internal/poaerr"
)

// Dialect tags the four quoting conventions this system needs.
type Dialect string

const (
	Postgres    Dialect = "postgres"
	MSSQL       Dialect = "mssql"
	HH          Dialect = "hh"
	GenericODBC Dialect = "odbc"
)

// Quote wraps name in the dialect's identifier-quote characters,
// lowercasing it first — every identifier this system emits is
// lowercased, matching the destination table shape invariant.
func Quote(dialect Dialect, name string) string {
	lower := strings.ToLower(name)
	switch dialect {
	case HH:
		return "`" + lower + "`"
	case Postgres, MSSQL, GenericODBC:
		return `"` + lower + `"`
	default:
		return `"` + lower + `"`
	}
}

// QuoteWithAlias renders "Name" AS "name" when the caller supplied a
// mixed-case column, or just the quoted lowercase name otherwise, per
// spec.md §4.2's identifier quoting rule.
func QuoteWithAlias(dialect Dialect, name string) string {
	lower := strings.ToLower(name)
	if name == lower {
		return Quote(dialect, name)
	}
	rawQuoted := quoteRaw(dialect, name)
	return rawQuoted + " AS " + Quote(dialect, lower)
}

func quoteRaw(dialect Dialect, name string) string {
	if dialect == HH {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// QualifiedTableName joins schema and table, quoting each part. An empty
// schemaName omits the schema qualifier.
func QualifiedTableName(dialect Dialect, schemaName, tableName string) string {
	if schemaName == "" {
		return Quote(dialect, tableName)
	}
	return Quote(dialect, schemaName) + "." + Quote(dialect, tableName)
}

var forbiddenSubstrings = []string{";", "--", "/*", "*/"}

// GuardAgainstInjection refuses any identifier containing one of the
// forbidden substrings (';', '--', '/*', '*/'), per spec.md §4.2's
// injection guard. It is called on every dynamically-assembled SQL
// identifier this system emits: destination index/watermark columns
// (internal/dstds/postgres) and every source adapter's caller-supplied
// column names and after-filter keys (internal/srcds/postgres,
// internal/srcds/mssql, internal/srcds/odbc). Bound parameter values
// never go through this guard — they're passed as driver placeholders,
// not interpolated into SQL text.
func GuardAgainstInjection(s string) error {
	for _, bad := range forbiddenSubstrings {
		if strings.Contains(s, bad) {
			return poaerr.New(
				poaerr.KindSqlInjectionRefused,
				"refused to execute SQL containing a forbidden substring",
				map[string]any{"substring": bad, "value": s},
			)
		}
	}
	return nil
}
