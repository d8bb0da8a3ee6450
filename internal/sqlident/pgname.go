package sqlident

import "fmt"

// pgMaxIdentLen is PostgreSQL's NAMEDATALEN - 1: the longest identifier
// the server will store without silent truncation.
const pgMaxIdentLen = 63

// PostgresIndexName builds a "prefix_table_column" style index name,
// truncating table and column in the same proportion PostgreSQL itself
// uses for auto-generated constraint names (favor keeping the column
// name intact up to 28 characters, then take the remaining overflow from
// the table name) so two different long tables never collide on a
// truncated index name differently than a human reading the DDL would
// expect. Grounded on the teacher pack's
// util.BuildPostgresConstraintName.
func PostgresIndexName(prefix, tableName, columnName string) string {
	full := fmt.Sprintf("%s_%s_%s", prefix, tableName, columnName)
	if len(full) <= pgMaxIdentLen {
		return full
	}

	overflow := len(full) - pgMaxIdentLen
	tableLen := len(tableName)
	columnLen := len(columnName)

	var tableRemove, columnRemove int
	if columnLen > 28 {
		columnRemove = overflow
		if columnRemove > columnLen-28 {
			tableRemove = columnRemove - (columnLen - 28)
			columnRemove = columnLen - 28
		}
	} else {
		tableRemove = overflow
	}
	if tableRemove > tableLen {
		tableRemove = tableLen
	}
	if columnRemove > columnLen {
		columnRemove = columnLen
	}

	return fmt.Sprintf("%s_%s_%s", prefix, tableName[:tableLen-tableRemove], columnName[:columnLen-columnRemove])
}
