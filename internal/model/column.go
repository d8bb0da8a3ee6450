package model

import "strings"

// Column is an immutable description of one table column. Name is always
// lowercased at construction; callers that need to preserve a source's
// mixed-case identifier for display do so in the dialect layer, not here.
type Column struct {
	Name      string
	DataType  DataType
	Nullable  bool
	Length    *int
	Precision *int
	Scale     *int
}

// NewColumn lowercases Name and validates DataType, matching the
// pydantic-strict construction the original dataclass performed.
func NewColumn(name string, dataType DataType, nullable bool, length, precision, scale *int) (Column, error) {
	if !dataType.Valid() {
		return Column{}, &invalidColumnError{name: name, dataType: dataType}
	}
	return Column{
		Name:      strings.ToLower(name),
		DataType:  dataType,
		Nullable:  nullable,
		Length:    length,
		Precision: precision,
		Scale:     scale,
	}, nil
}

// DecimalPrecisionScale returns the effective (precision, scale) for a
// Decimal column, defaulting to (18, 4) at DDL-emission time per the
// destination-table shape invariant.
func (c Column) DecimalPrecisionScale() (int, int) {
	precision, scale := 18, 4
	if c.Precision != nil {
		precision = *c.Precision
	}
	if c.Scale != nil {
		scale = *c.Scale
	}
	return precision, scale
}

type invalidColumnError struct {
	name     string
	dataType DataType
}

func (e *invalidColumnError) Error() string {
	return "column " + e.name + " has unsupported data type " + string(e.dataType)
}
