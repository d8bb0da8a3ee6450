package model

import (
	"fmt"
	"sort"
	"strings"
)

// Table is an immutable description of one table's shape: its identity
// (db/schema/table name), its primary key (an ordered, non-empty tuple of
// column names), and its column set.
//
// Invariants, enforced by NewTable: PK is non-empty; every PK column name
// appears in Columns; every PK column is forced non-nullable even if the
// source reported it nullable (this was originally an HH-dialect-only
// override but the core applies it uniformly, since a nullable primary
// key is nonsensical for the soft-delete/hash-diff destination layout).
type Table struct {
	DbName     string
	SchemaName string // empty string means "no schema"
	TableName  string
	PK         []string
	Columns    []Column // unordered set; names are unique
}

// NewTable validates and constructs a Table, lowercasing identifiers and
// applying the PK-implies-not-null invariant.
func NewTable(dbName, schemaName, tableName string, pk []string, columns []Column) (Table, error) {
	if len(pk) == 0 {
		return Table{}, emptyPKError{table: tableName}
	}

	byName := make(map[string]Column, len(columns))
	for _, c := range columns {
		if _, dup := byName[c.Name]; dup {
			return Table{}, fmt.Errorf("duplicate column name %q in table %q", c.Name, tableName)
		}
		byName[c.Name] = c
	}

	normalizedPK := make([]string, len(pk))
	pkSet := make(map[string]bool, len(pk))
	for i, name := range pk {
		lower := strings.ToLower(name)
		normalizedPK[i] = lower
		pkSet[lower] = true
		if _, ok := byName[lower]; !ok {
			return Table{}, fmt.Errorf("pk column %q is not present in table %q's columns", lower, tableName)
		}
	}

	out := make([]Column, 0, len(columns))
	for _, c := range columns {
		if pkSet[c.Name] {
			c.Nullable = false
		}
		out = append(out, c)
	}

	return Table{
		DbName:     dbName,
		SchemaName: strings.ToLower(schemaName),
		TableName:  strings.ToLower(tableName),
		PK:         normalizedPK,
		Columns:    out,
	}, nil
}

// ColumnNames returns the sorted set of column names, the "minimum
// compare" projection callers use when talking to SrcDs/DstDs without an
// explicit column list.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// Column looks up a column by name, returning (Column{}, false) if absent.
func (t Table) Column(name string) (Column, bool) {
	name = strings.ToLower(name)
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsPK reports whether name is one of the table's primary key columns.
func (t Table) IsPK(name string) bool {
	name = strings.ToLower(name)
	for _, p := range t.PK {
		if p == name {
			return true
		}
	}
	return false
}

// NonPKColumnNames returns the sorted set of column names excluding PK
// columns — the columns hashed into poa_hd.
func (t Table) NonPKColumnNames() []string {
	all := t.ColumnNames()
	out := make([]string, 0, len(all))
	for _, name := range all {
		if !t.IsPK(name) {
			out = append(out, name)
		}
	}
	return out
}

// WithIdentity returns a copy of t with its db/schema/table identity
// replaced, keeping PK and Columns — used to derive the destination
// table's shape from the source table's shape.
func (t Table) WithIdentity(dbName, schemaName, tableName string) Table {
	t.DbName = dbName
	t.SchemaName = strings.ToLower(schemaName)
	t.TableName = strings.ToLower(tableName)
	return t
}

type emptyPKError struct {
	table string
}

func (e emptyPKError) Error() string {
	return fmt.Sprintf("table %q has an empty primary key, which is required", e.table)
}
