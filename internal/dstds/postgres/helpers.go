package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/markstefanovic/poa/internal/model"
	"github.com/markstefanovic/poa/internal/poaerr"
	"github.com/markstefanovic/poa/internal/sqlident"
)

func sortedColumns(t model.Table) []model.Column {
	cols := append([]model.Column(nil), t.Columns...)
	sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

func columnDefinition(c model.Column) string {
	nullable := "NOT NULL"
	if c.Nullable {
		nullable = "NULL"
	}
	quoted := fmt.Sprintf(`"%s"`, c.Name)

	switch c.DataType {
	case model.BigFloat:
		return fmt.Sprintf("%s DOUBLE PRECISION %s", quoted, nullable)
	case model.BigInt:
		return fmt.Sprintf("%s BIGINT %s", quoted, nullable)
	case model.Bool:
		return fmt.Sprintf("%s BOOL %s", quoted, nullable)
	case model.Date:
		return fmt.Sprintf("%s DATE %s", quoted, nullable)
	case model.Decimal:
		precision, scale := c.DecimalPrecisionScale()
		return fmt.Sprintf("%s NUMERIC(%d, %d) %s", quoted, precision, scale, nullable)
	case model.Float:
		return fmt.Sprintf("%s FLOAT %s", quoted, nullable)
	case model.Int:
		return fmt.Sprintf("%s INT %s", quoted, nullable)
	case model.Text:
		return fmt.Sprintf("%s TEXT %s", quoted, nullable)
	case model.Timestamp:
		return fmt.Sprintf("%s TIMESTAMP %s", quoted, nullable)
	case model.TimestampTZ:
		return fmt.Sprintf("%s TIMESTAMPTZ %s", quoted, nullable)
	case model.UUID:
		return fmt.Sprintf("%s UUID %s", quoted, nullable)
	default:
		return fmt.Sprintf("%s TEXT %s", quoted, nullable)
	}
}

func quotedList(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = fmt.Sprintf(`"%s"`, c)
	}
	return strings.Join(out, ", ")
}

func quotedColumnList(cols []string) string {
	return quotedList(cols)
}

func prefixedColumnList(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + fmt.Sprintf(`"%s"`, c)
	}
	return strings.Join(out, ", ")
}

func scanRows(rows *sql.Rows, cols []string) ([]model.Row, error) {
	var out []model.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to scan row", nil)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "error iterating rows", nil)
	}
	return out, nil
}

func afterWhereClause(after map[string]any, startIdx int) (string, []any, error) {
	if len(after) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(after))
	for k := range after {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	var params []any
	idx := startIdx
	for _, k := range keys {
		if err := sqlident.GuardAgainstInjection(k); err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf(`"%s" > $%d`, k, idx))
		params = append(params, after[k])
		idx++
	}
	return strings.Join(parts, " OR "), params, nil
}

func encodeKeys(keys []model.RowKey) ([]byte, error) {
	out := make([]map[string]any, len(keys))
	for i, k := range keys {
		out[i] = k.Values()
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, poaerr.Wrap(poaerr.KindIoError, err, "failed to encode row keys as json", nil)
	}
	return b, nil
}
