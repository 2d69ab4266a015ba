package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/lumen/internal/ast"
)

// ErrorCode identifies the failure category within an error class.
type ErrorCode string

const (
	// ErrCodeUnresolvedPartialPath means a partial path had no prefix to
	// bind to.
	ErrCodeUnresolvedPartialPath ErrorCode = "UNRESOLVED_PARTIAL_PATH"

	// ErrCodeInvalidTypeFilter means an [IS ...] operand is not an
	// object type.
	ErrCodeInvalidTypeFilter ErrorCode = "INVALID_TYPE_FILTER"

	// ErrCodeTypeMismatch means an expression's type is not implicitly
	// castable to the required type.
	ErrCodeTypeMismatch ErrorCode = "TYPE_MISMATCH"

	// ErrCodeCardinalityViolation means a singleton was required but the
	// expression may produce more than one element.
	ErrCodeCardinalityViolation ErrorCode = "CARDINALITY_VIOLATION"

	// ErrCodeUnknownPointer means an outbound link or property lookup
	// failed.
	ErrCodeUnknownPointer ErrorCode = "UNKNOWN_POINTER"

	// ErrCodeUnknownLinkProperty means a property lookup on a link
	// failed.
	ErrCodeUnknownLinkProperty ErrorCode = "UNKNOWN_LINK_PROPERTY"

	// ErrCodeUnknownInboundPath means an inbound traversal does not
	// resolve to any known path.
	ErrCodeUnknownInboundPath ErrorCode = "UNKNOWN_INBOUND_PATH"

	// ErrCodePrimitiveProperty means a property was referenced on a
	// primitive source.
	ErrCodePrimitiveProperty ErrorCode = "PRIMITIVE_PROPERTY"

	// ErrCodeUnknownType means a schema type name did not resolve.
	ErrCodeUnknownType ErrorCode = "UNKNOWN_TYPE"
)

// QueryError is a user query error: the query is well-formed but invalid
// against the schema. Recoverable only by surfacing to the caller.
type QueryError struct {
	Code    ErrorCode
	Message string
	Pos     ast.Pos
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ReferenceError is an unresolved name error: an unknown pointer,
// property, or type. Outbound lookups carry near-miss suggestions.
type ReferenceError struct {
	Code        ErrorCode
	Message     string
	Pos         ast.Pos
	Suggestions []string
}

// Error implements the error interface.
func (e *ReferenceError) Error() string {
	msg := e.Message
	if len(e.Suggestions) > 0 {
		quoted := make([]string, len(e.Suggestions))
		for i, s := range e.Suggestions {
			quoted[i] = fmt.Sprintf("%q", s)
		}
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(quoted, " or "))
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// InternalError signals a caller-side invariant violation in the
// surrounding compiler, never a user mistake. Callers must not try to
// recover from it or surface it as a query diagnostic.
type InternalError struct {
	Message string
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	return "internal compiler error: " + e.Message
}

func internalf(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// IsQueryError reports whether err is (or wraps) a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

// IsReferenceError reports whether err is (or wraps) a ReferenceError.
func IsReferenceError(err error) bool {
	var re *ReferenceError
	return errors.As(err, &re)
}

// IsInternalError reports whether err is (or wraps) an InternalError.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
