// Package compileerr names the error categories this compiler can report,
// so callers (tests, the CLI) can distinguish failure stages with
// errors.Is/errors.As instead of matching message text. Every stage wraps
// its underlying error with fmt.Errorf("%w", ...) against one of these
// sentinels, the same plain-stdlib error style the rest of this project's
// lineage uses — no third-party error library is pulled in for this.
package compileerr

import "errors"

// Stage-identifying sentinel errors. Wrap one of these with fmt.Errorf's
// %w verb to preserve both the stage and the underlying detail.
var (
	// ErrParse covers any failure turning source text into a parse tree.
	ErrParse = errors.New("parse error")

	// ErrMalformed covers a syntactically valid parse tree that does not
	// obey a special form's shape (wrong operand count, non-symbol
	// binding target, duplicate parameter name, and the like).
	ErrMalformed = errors.New("ill-formed expression")

	// ErrUndefinedVariable covers a symbol reference that resolves to no
	// parameter, no nested definition, and no lifted capture.
	ErrUndefinedVariable = errors.New("undefined variable")

	// ErrUnknownFunction covers a procedure call whose operator symbol
	// names no top-level function and no primitive.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrNonSymbolOperator covers a procedure call whose operator
	// position is not a symbol (this dialect has no first-class
	// function values flowing through call position).
	ErrNonSymbolOperator = errors.New("operator is not a symbol")

	// ErrVerification covers a module that code generation produced but
	// that failed LLVM's own IR verifier.
	ErrVerification = errors.New("IR verification failed")

	// ErrToolchain covers failures in the external collaborators this
	// compiler hands object code and linking off to: object emission and
	// the system linker invocation.
	ErrToolchain = errors.New("toolchain failure")
)
