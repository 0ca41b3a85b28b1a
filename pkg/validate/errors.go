package validate

import (
	"fmt"
	"strings"
)

// Error is a single validation violation. FieldID is set when the violation
// concerns an identifiable field.
type Error struct {
	FieldID string `json:"fieldId,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Errors collects every violation found in one validation pass so callers
// can report them all at once.
type Errors []*Error

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Message
	}
	return "invalid metric query: " + strings.Join(msgs, "; ")
}

type errorList struct {
	errs Errors
}

func (l *errorList) add(fieldID, format string, args ...any) {
	l.errs = append(l.errs, &Error{FieldID: fieldID, Message: fmt.Sprintf(format, args...)})
}

func (l *errorList) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs
}
