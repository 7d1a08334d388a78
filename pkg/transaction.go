package pkg

import (
	"runtime"

	"github.com/pkg/errors"
)

// transaction is the strategy installed in a context's slot. A transaction
// object is confined to one goroutine and has no internal synchronization;
// all inter-goroutine coordination goes through the version clock and the
// per-variable versioned locks.
type transaction interface {
	begin() error
	beginReadOnly() error
	commit() ([]publishedWrite, error)
	rollback() error
	read(sv *StmVariable) (interface{}, error)
	write(sv *StmVariable, newVal interface{}) error
	running() bool
}

// publishedWrite is one write published by an outermost commit, kept for
// change notification after the transactional state is gone.
type publishedWrite struct {
	variable *StmVariable
	newVal   interface{}
}

// consistentRead implements the lock-free read protocol: sample the lock,
// load the payload, sample again. The payload is the one tagged with the
// sampled version only if both samples agree and the lock was free.
func consistentRead(sv *StmVariable, readVersion uint64) (interface{}, error) {
	for {
		preLocked, preVersion, preWord := sv.lock.Sample()
		readVal := sv.loadValue()
		_, _, postWord := sv.lock.Sample()

		// The raw words must match: a committer stores the payload before
		// it stores the new lock word, so a version-only comparison could
		// accept a payload published mid-commit.
		if preLocked || preWord != postWord {
			// Some other goroutine is mid-commit on this variable.
			runtime.Gosched()
			continue
		}
		if preVersion > readVersion {
			return nil, errors.WithMessage(ErrConflict, "variable is newer than read snapshot")
		}
		return readVal, nil
	}
}
