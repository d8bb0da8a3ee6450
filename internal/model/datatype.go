// Package model holds the portable value types shared by every dialect
// adapter and by the sync/check engines: the closed DataType tag set,
// Column/Table descriptions, Row/RowKey, RowDiff, and the two outcome
// types, CheckResult and SyncResult.
package model

import "fmt"

// DataType is the closed tag set every dialect mapping must be total
// over. A dialect that cannot represent one of these (or a source column
// whose native type has no mapping here) must fail with
// poaerr.KindUnsupportedType rather than guess.
type DataType string

const (
	BigFloat    DataType = "big_float"
	BigInt      DataType = "big_int"
	Bool        DataType = "bool"
	Date        DataType = "date"
	Decimal     DataType = "decimal"
	Float       DataType = "float"
	Int         DataType = "int"
	Text        DataType = "text"
	Timestamp   DataType = "timestamp"
	TimestampTZ DataType = "timestamptz"
	UUID        DataType = "uuid"
)

// AllDataTypes enumerates the closed set, in the order cache/DDL code
// iterates over it.
var AllDataTypes = []DataType{
	BigFloat, BigInt, Bool, Date, Decimal, Float, Int, Text, Timestamp, TimestampTZ, UUID,
}

// Valid reports whether d is one of the closed DataType members.
func (d DataType) Valid() bool {
	for _, v := range AllDataTypes {
		if v == d {
			return true
		}
	}
	return false
}

func (d DataType) String() string {
	return string(d)
}

// DataTypeFromDBName maps a schema-cache DB name (see
// internal/schemacache) back to a DataType. It is total over
// AllDataTypes and returns an error for anything else.
func DataTypeFromDBName(name string) (DataType, error) {
	dt := DataType(name)
	if dt.Valid() {
		return dt, nil
	}
	return "", fmt.Errorf("no DataType for db name %q", name)
}
