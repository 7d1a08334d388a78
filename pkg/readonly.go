package pkg

import "github.com/pkg/errors"

// readOnlyTxn reads against a clock snapshot with O(1) validation per
// access. It keeps no read set and publishes nothing; commit and rollback
// are indistinguishable.
type readOnlyTxn struct {
	readVersion uint64
	depth       int
}

func (tx *readOnlyTxn) begin() error {
	return errors.WithMessage(ErrReadOnly, "read-write frame on a read-only transaction")
}

func (tx *readOnlyTxn) beginReadOnly() error {
	if tx.depth == 0 {
		tx.readVersion = versionClock.Load()
	}
	tx.depth++
	return nil
}

func (tx *readOnlyTxn) commit() ([]publishedWrite, error) {
	return nil, tx.pop()
}

func (tx *readOnlyTxn) rollback() error {
	return tx.pop()
}

func (tx *readOnlyTxn) pop() error {
	if tx.depth == 0 {
		return errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	tx.depth--
	return nil
}

func (tx *readOnlyTxn) read(sv *StmVariable) (interface{}, error) {
	if tx.depth == 0 {
		return nil, errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	return consistentRead(sv, tx.readVersion)
}

func (tx *readOnlyTxn) write(sv *StmVariable, newVal interface{}) error {
	if tx.depth == 0 {
		return errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	return errors.WithMessage(ErrReadOnly, "write on a read-only transaction")
}

func (tx *readOnlyTxn) running() bool {
	return tx.depth > 0
}
