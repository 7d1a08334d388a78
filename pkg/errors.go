package pkg

import "github.com/pkg/errors"

// Transaction failures form a closed set. ErrConflict is handled by the
// retry loop and must not be swallowed by user code; the rest surface to
// the caller of StmAtomic / StmAtomicReadOnly.
var (
	// ErrConflict signals that a transaction observed, or was about to
	// publish over, state newer than its read snapshot.
	ErrConflict = errors.New("transaction conflict")

	// ErrOutsideTransaction signals variable access, commit or rollback
	// without a running transaction on the current context.
	ErrOutsideTransaction = errors.New("no transaction is running")

	// ErrReadOnly signals a write, or a read-write begin, on a read-only
	// transaction or frame.
	ErrReadOnly = errors.New("transaction is read-only")

	// ErrValidation signals that a pre-write validation listener vetoed
	// the write. The enclosing transaction is rolled back, not retried.
	ErrValidation = errors.New("write vetoed by validation listener")

	// ErrNilArgument signals a nil transaction block or a nil variable.
	ErrNilArgument = errors.New("nil argument")
)
