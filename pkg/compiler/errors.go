package compiler

import "fmt"

// CompileError reports a query the target dialect cannot express, or a
// structural problem discovered during SQL generation. FieldID names the
// offending field when one is identifiable.
type CompileError struct {
	Dialect string
	FieldID string
	Reason  string
}

func (e *CompileError) Error() string {
	if e.FieldID != "" {
		return fmt.Sprintf("cannot compile %s for dialect %s: %s", e.FieldID, e.Dialect, e.Reason)
	}
	return fmt.Sprintf("cannot compile query for dialect %s: %s", e.Dialect, e.Reason)
}

func compileErr(dialect, fieldID, format string, args ...any) *CompileError {
	return &CompileError{Dialect: dialect, FieldID: fieldID, Reason: fmt.Sprintf(format, args...)}
}
