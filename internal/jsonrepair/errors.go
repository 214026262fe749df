package jsonrepair

import "fmt"

// Kind classifies a repair failure.
type Kind string

const (
	// KindSyntax means no sequence of fixes produced parseable JSON.
	KindSyntax Kind = "syntax"
	// KindSchema means the JSON parsed but the envelope is unusable.
	KindSchema Kind = "schema"
)

// RepairError is returned when a response cannot be turned into a usable value.
type RepairError struct {
	Kind  Kind
	Msg   string
	Fixes []string
	Err   error
}

func (e *RepairError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("json repair (%s): %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("json repair (%s): %s", e.Kind, e.Msg)
}

func (e *RepairError) Unwrap() error {
	return e.Err
}
