package pkg

import (
	"sort"

	"github.com/pkg/errors"
)

// txnFrame is one live nested begin. Reads accumulate for commit-time
// revalidation; writes stay buffered until the outermost commit publishes
// them. Read-only frames carry no write log.
type txnFrame struct {
	readOnly bool
	readLog  map[*StmVariable]struct{}
	writeLog map[*StmVariable]interface{}
}

func newTxnFrame(readOnly bool) *txnFrame {
	frame := &txnFrame{
		readOnly: readOnly,
		readLog:  make(map[*StmVariable]struct{}),
	}
	if !readOnly {
		frame.writeLog = make(map[*StmVariable]interface{})
	}
	return frame
}

// readWriteTxn is a TL2 transaction: reads validate against the clock
// snapshot taken at the outermost begin, writes buffer per frame. Inner
// commits merge upward; the outermost commit locks the write set in
// ascending variable id order, ticks the clock, revalidates the read set
// and publishes.
type readWriteTxn struct {
	readVersion uint64
	stack       []*txnFrame
}

func (tx *readWriteTxn) running() bool {
	return len(tx.stack) > 0
}

func (tx *readWriteTxn) top() *txnFrame {
	return tx.stack[len(tx.stack)-1]
}

func (tx *readWriteTxn) begin() error {
	if len(tx.stack) == 0 {
		tx.readVersion = versionClock.Load()
	} else if tx.top().readOnly {
		return errors.WithMessage(ErrReadOnly, "read-write frame inside a read-only frame")
	}
	tx.stack = append(tx.stack, newTxnFrame(false))
	return nil
}

func (tx *readWriteTxn) beginReadOnly() error {
	if len(tx.stack) == 0 {
		tx.readVersion = versionClock.Load()
	}
	tx.stack = append(tx.stack, newTxnFrame(true))
	return nil
}

func (tx *readWriteTxn) read(sv *StmVariable) (interface{}, error) {
	if len(tx.stack) == 0 {
		return nil, errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}

	// Own writes win, innermost frame first.
	for i := len(tx.stack) - 1; i >= 0; i-- {
		if frame := tx.stack[i]; !frame.readOnly {
			if newVal, ok := frame.writeLog[sv]; ok {
				return newVal, nil
			}
		}
	}

	readVal, err := consistentRead(sv, tx.readVersion)
	if err != nil {
		return nil, err
	}
	tx.top().readLog[sv] = struct{}{}
	return readVal, nil
}

func (tx *readWriteTxn) write(sv *StmVariable, newVal interface{}) error {
	if len(tx.stack) == 0 {
		return errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	if tx.top().readOnly {
		return errors.WithMessage(ErrReadOnly, "write on a read-only frame")
	}
	if err := sv.validate(newVal); err != nil {
		return err
	}
	tx.top().writeLog[sv] = newVal
	return nil
}

func (tx *readWriteTxn) rollback() error {
	if len(tx.stack) == 0 {
		return errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	tx.stack = tx.stack[:len(tx.stack)-1]
	return nil
}

func (tx *readWriteTxn) commit() ([]publishedWrite, error) {
	switch {
	case len(tx.stack) == 0:
		return nil, errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	case len(tx.stack) > 1:
		tx.mergeToParent()
		return nil, nil
	}

	frame := tx.top()
	if frame.readOnly {
		// Nothing buffered, nothing to publish or notify.
		tx.stack = tx.stack[:0]
		return nil, nil
	}

	published, err := tx.commitOutermost(frame)
	if err != nil {
		return nil, err
	}
	tx.stack = tx.stack[:0]
	return published, nil
}

// mergeToParent folds the top frame into its parent: reads union, writes
// overlay last-writer-wins. A read-write frame never sits on a read-only
// parent, begin forbids it.
func (tx *readWriteTxn) mergeToParent() {
	frame := tx.top()
	tx.stack = tx.stack[:len(tx.stack)-1]
	parent := tx.top()

	for sv := range frame.readLog {
		parent.readLog[sv] = struct{}{}
	}
	if frame.readOnly {
		return
	}
	for sv, newVal := range frame.writeLog {
		parent.writeLog[sv] = newVal
	}
}

func (tx *readWriteTxn) commitOutermost(frame *txnFrame) ([]publishedWrite, error) {
	writeSet := sortedWriteSet(frame.writeLog)

	// Ascending id order keeps concurrent committers deadlock-free.
	for _, sv := range writeSet {
		sv.lock.SpinAcquire()
	}

	writeVersion := versionClock.Increment()

	if err := validateReadLog(frame, tx.readVersion); err != nil {
		releaseWriteSet(writeSet)
		return nil, err
	}

	published := make([]publishedWrite, 0, len(writeSet))
	for _, sv := range writeSet {
		newVal := frame.writeLog[sv]
		sv.storeValue(newVal)
		if err := sv.lock.VersionedRelease(writeVersion); err != nil {
			// The lock is ours and version overflow is out of scope.
			panic(err)
		}
		published = append(published, publishedWrite{variable: sv, newVal: newVal})
	}
	return published, nil
}

// validateReadLog re-checks every read against the snapshot. A variable
// locked by another committer, or stamped newer than our snapshot, means
// the read could not be re-performed consistently.
func validateReadLog(frame *txnFrame, readVersion uint64) error {
	for sv := range frame.readLog {
		locked, version, _ := sv.lock.Sample()
		if _, ours := frame.writeLog[sv]; !ours && locked {
			return errors.WithMessage(ErrConflict, "read variable is locked by another transaction")
		}
		if version > readVersion {
			return errors.WithMessage(ErrConflict, "read variable is newer than read snapshot")
		}
	}
	return nil
}

func sortedWriteSet(writeLog map[*StmVariable]interface{}) []*StmVariable {
	writeSet := make([]*StmVariable, 0, len(writeLog))
	for sv := range writeLog {
		writeSet = append(writeSet, sv)
	}
	sort.Slice(writeSet, func(i, j int) bool {
		return writeSet[i].id < writeSet[j].id
	})
	return writeSet
}

func releaseWriteSet(writeSet []*StmVariable) {
	for _, alreadyLocked := range writeSet {
		if err := alreadyLocked.lock.Release(); err != nil {
			panic(err)
		}
	}
}
