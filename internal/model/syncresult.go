package model

// SyncStatus is the closed tag for SyncResult: exactly one of three
// terminal states a sync invocation can end in.
type SyncStatus string

const (
	SyncSucceeded SyncStatus = "succeeded"
	SyncFailed    SyncStatus = "failed"
	SyncSkipped   SyncStatus = "skipped"
)

// SyncResult is the tagged outcome of one sync() call. Only the fields
// relevant to Status are meaningful; this is the idiomatic Go rendering
// of the source's {succeeded | failed | skipped} sum type.
type SyncResult struct {
	Status       SyncStatus
	RowsAdded    int
	RowsDeleted  int
	RowsUpdated  int
	ExecutionMS  int64
	ErrorMessage string
	SkipReason   string
}

// Succeeded constructs a SyncSucceeded result.
func Succeeded(rowsAdded, rowsDeleted, rowsUpdated int, executionMS int64) SyncResult {
	return SyncResult{
		Status:      SyncSucceeded,
		RowsAdded:   rowsAdded,
		RowsDeleted: rowsDeleted,
		RowsUpdated: rowsUpdated,
		ExecutionMS: executionMS,
	}
}

// Failed constructs a SyncFailed result.
func Failed(message string) SyncResult {
	return SyncResult{Status: SyncFailed, ErrorMessage: message}
}

// Skipped constructs a SyncSkipped result.
func Skipped(reason string) SyncResult {
	return SyncResult{Status: SyncSkipped, SkipReason: reason}
}
