package relq

import "github.com/dosco-labs/relq/internal/rerr"

// Error kinds (§7). Re-exported from internal/rerr so callers never
// need to import an internal package to type-switch on a failure.
const (
	SchemaError      = rerr.SchemaError
	UnknownColumn    = rerr.UnknownColumn
	IllegalAggregate = rerr.IllegalAggregate
	CodecError       = rerr.CodecError
	EmptyResult      = rerr.EmptyResult
	TooManyResults   = rerr.TooManyResults
	DriverError      = rerr.DriverError
)

// Kind classifies an error raised by the core (§7).
type Kind = rerr.Kind

// Error is the core's single error type.
type Error = rerr.Error
