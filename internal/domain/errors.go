package domain

import "fmt"

// SchemaError describes a fatal problem with one source row: a missing join
// key, a duplicate key, or an unusable required column. It carries enough
// context (file, row, field) to diagnose the bad source data without
// re-running the pipeline.
type SchemaError struct {
	File   string
	Row    int // 1-based data row number, 0 when not row-specific
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("%s: row %d: field %q: %s", e.File, e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", e.File, e.Field, e.Reason)
}
