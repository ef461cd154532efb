// Package rerr is the error taxonomy shared by every internal package
// and re-exported from the public API (§7).
package rerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error raised by the core. It is a taxonomy of
// failure modes, not a set of concrete error values, so callers
// switch on Kind rather than on error identity.
type Kind int

const (
	// SchemaError covers duplicate column names, a table with no
	// primary column, a nullable primary column, or a reference to an
	// unknown table.
	SchemaError Kind = iota
	// UnknownColumn is a reference to a column absent from the column
	// bag in scope at the call that introduced it.
	UnknownColumn
	// IllegalAggregate is an aggregate expression used outside the
	// selection/having/orderBy of a grouped query.
	IllegalAggregate
	// CodecError is a serialize/parse call incompatible with its
	// codec's domain.
	CodecError
	// EmptyResult is one/first called against zero rows.
	EmptyResult
	// TooManyResults is one/maybeOne called against more than one row.
	TooManyResults
	// DriverError wraps anything raised by the driver surface (§6).
	DriverError
)

func (k Kind) String() string {
	switch k {
	case SchemaError:
		return "SchemaError"
	case UnknownColumn:
		return "UnknownColumn"
	case IllegalAggregate:
		return "IllegalAggregate"
	case CodecError:
		return "CodecError"
	case EmptyResult:
		return "EmptyResult"
	case TooManyResults:
		return "TooManyResults"
	case DriverError:
		return "DriverError"
	default:
		return "UnknownKind"
	}
}

// Error is the core's single error type. Node and Column pin the
// error to the offending IR node name or result-column name, per the
// propagation policy in spec.md §7.
type Error struct {
	Kind   Kind
	Msg    string
	Node   string
	Column string
	cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("%s: %s (column %q)", e.Kind, e.Msg, e.Column)
	case e.Node != "":
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Msg, e.Node)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error of the given kind.
func New(k Kind, msg string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(msg, args...)}
}

// AtNode annotates the error with the offending IR node's description.
func (e *Error) AtNode(node string) *Error {
	e.Node = node
	return e
}

// AtColumn annotates the error with the result-column name whose parse failed.
func (e *Error) AtColumn(col string) *Error {
	e.Column = col
	return e
}

// WrapDriver wraps an error raised by the driver surface (§6) as a
// DriverError, preserving its cause via github.com/pkg/errors so
// callers can still errors.Cause() down to the original driver error.
func WrapDriver(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: DriverError, Msg: msg, cause: errors.Wrap(err, msg)}
}
