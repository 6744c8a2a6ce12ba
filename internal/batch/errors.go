package batch

import "errors"

// Error kinds returned by batch operations and queries.
// Callers match them with errors.Is.
var (
	// ErrNullValue is returned when a required argument is missing.
	ErrNullValue = errors.New("null value")

	// ErrInvalidQuery is returned when a query was constructed incorrectly.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidArgument is returned when batch parameters are malformed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrExecutionFailure is returned when a batch job's operation failed.
	ErrExecutionFailure = errors.New("batch job execution failed")

	// ErrNotFound is returned when a batch or batch job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNonUnique is returned by SingleResult when more than one batch matches.
	ErrNonUnique = errors.New("query returned more than one result")

	// ErrBatchJobsRemain is returned when a non-cascading delete finds batch jobs.
	ErrBatchJobsRemain = errors.New("batch jobs remain")
)

// Error carries a human readable message together with one of the error kinds above.
type Error struct {
	Kind    error
	Message string
}

// Error returns the message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is matches it.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// NullValue builds an ErrNullValue error with the given message.
func NullValue(msg string) error {
	return newError(ErrNullValue, msg)
}

// InvalidQuery builds an ErrInvalidQuery error prefixed with "Invalid query: ".
func InvalidQuery(msg string) error {
	return newError(ErrInvalidQuery, "Invalid query: "+msg)
}

// InvalidArgument builds an ErrInvalidArgument error with the given message.
func InvalidArgument(msg string) error {
	return newError(ErrInvalidArgument, msg)
}
