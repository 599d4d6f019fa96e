package table

import "errors"

// Errors shared by the engines that validate field references and semantic
// types against a table. Callers match them with errors.Is.
var (
	// ErrUnknownField is returned when a configuration references a column
	// that does not exist in the table.
	ErrUnknownField = errors.New("unknown field")

	// ErrTypeMismatch is returned when an operation is applied to a column of
	// an incompatible semantic type (e.g., sum over a text column).
	ErrTypeMismatch = errors.New("type mismatch")
)
