package shell

import "fmt"

// ErrorKind classifies structural failures in the shell-story micro-syntax.
type ErrorKind string

const (
	ErrMissingID          ErrorKind = "missing_id"
	ErrMissingSeparator   ErrorKind = "missing_separator"
	ErrMissingDescription ErrorKind = "missing_description"
	ErrUnknownID          ErrorKind = "unknown_id"
)

// RecordError reports a structural problem with one shell-story record. It
// carries the offending id (when known) and the zero-based position of the
// list item so an operator can locate the source line. Presentation layers
// format prose from these fields; the error message stays terse.
type RecordError struct {
	Kind ErrorKind
	ID   string
	Item int
}

func (e *RecordError) Error() string {
	switch e.Kind {
	case ErrMissingID:
		return fmt.Sprintf("shell story at item %d: no code-marked id segment", e.Item)
	case ErrMissingSeparator:
		return fmt.Sprintf("shell story %q (item %d): missing %q separator", e.ID, e.Item, separator)
	case ErrMissingDescription:
		return fmt.Sprintf("shell story %q (item %d): missing description after separator", e.ID, e.Item)
	case ErrUnknownID:
		return fmt.Sprintf("shell story %q: not found in section", e.ID)
	}
	return fmt.Sprintf("shell story %q (item %d): %s", e.ID, e.Item, e.Kind)
}
