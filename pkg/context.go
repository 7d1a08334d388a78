package pkg

import "github.com/pkg/errors"

// Block is a unit of transactional work. It may be re-invoked any number
// of times before its effects commit, so it must be free of side effects
// other than variable reads and writes.
type Block func(*StmContext) (interface{}, error)

// StmContext dispatches variable access to the transaction currently
// installed on it. A context is confined to one goroutine; it is retained
// across the retry loop and may be reused once its transaction stops
// running.
type StmContext struct {
	txn transaction
}

// Running reports whether a transaction is running on this context.
func (sc *StmContext) Running() bool {
	return sc.txn != nil && sc.txn.running()
}

// Read retrieves stmVariable's payload as of the transaction's snapshot,
// or its own buffered write if one exists.
func (sc *StmContext) Read(stmVariable *StmVariable) (interface{}, error) {
	if stmVariable == nil {
		return nil, errors.WithMessage(ErrNilArgument, "nil variable")
	}
	if !sc.Running() {
		return nil, errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	return sc.txn.read(stmVariable)
}

// Write buffers newVal for stmVariable in the innermost frame. The write
// becomes visible to other transactions only at the outermost commit.
func (sc *StmContext) Write(stmVariable *StmVariable, newVal interface{}) error {
	if stmVariable == nil {
		return errors.WithMessage(ErrNilArgument, "nil variable")
	}
	if !sc.Running() {
		return errors.WithMessage(ErrOutsideTransaction, "transaction is not running")
	}
	return sc.txn.write(stmVariable, newVal)
}

// Atomic runs block in a nested read-write frame on this context. Inside a
// read-only transaction it fails with ErrReadOnly.
func (sc *StmContext) Atomic(block Block) (interface{}, error) {
	return sc.run(block, false)
}

// AtomicReadOnly runs block in a nested read-only frame on this context.
func (sc *StmContext) AtomicReadOnly(block Block) (interface{}, error) {
	return sc.run(block, true)
}

func (sc *StmContext) run(block Block, readOnly bool) (interface{}, error) {
	if block == nil {
		return nil, errors.WithMessage(ErrNilArgument, "nil transaction block")
	}

	nested := sc.Running()
	if !nested {
		// Fresh top-level transaction of the requested flavor.
		if readOnly {
			sc.txn = &readOnlyTxn{}
		} else {
			sc.txn = &readWriteTxn{}
		}
	}

	for attempt := 1; ; attempt++ {
		var err error
		if readOnly {
			err = sc.txn.beginReadOnly()
		} else {
			err = sc.txn.begin()
		}
		if err != nil {
			return nil, err
		}
		if !nested {
			if readOnly {
				stats.readOnlyStarted.Inc()
			} else {
				stats.started.Inc()
			}
		}

		retVal, err := sc.invoke(block)
		if err == nil {
			published, commitErr := sc.txn.commit()
			if commitErr == nil {
				if !nested {
					if readOnly {
						stats.readOnlyCommitted.Inc()
					} else {
						stats.committed.Inc()
					}
				}
				// Change listeners run after the outermost frame is
				// popped, outside any transactional state.
				for _, pw := range published {
					pw.variable.notifyChanged(pw.newVal)
				}
				return retVal, nil
			}
			err = commitErr
		}

		_ = sc.txn.rollback()
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if sc.txn.running() {
			// Inner frame: the outermost retry loop handles the conflict.
			return nil, err
		}
		stats.conflicts.Inc()
		logger.Debugw("transaction conflict, retrying", "attempt", attempt)
	}
}

// invoke runs block, rolling back the current frame if it panics. The
// panic cascades so enclosing frames unwind the same way.
func (sc *StmContext) invoke(block Block) (retVal interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			_ = sc.txn.rollback()
			panic(r)
		}
	}()
	return block(sc)
}
