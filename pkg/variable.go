package pkg

import (
	"sync"
	"sync/atomic"

	uberatomic "go.uber.org/atomic"

	"github.com/merino/internal"
	"github.com/pkg/errors"
)

// variableIDs allocates process-unique, monotonically increasing ids.
// Commit acquires write-set locks in ascending id order.
var variableIDs uberatomic.Uint64

// stmValue boxes payloads so the underlying atomic.Value accepts nil
// payloads and payloads whose concrete type changes between writes.
type stmValue struct {
	val interface{}
}

// ValidateFunc is a pre-write validation listener. A non-nil return vetoes
// the write before it is buffered.
type ValidateFunc func(proposed interface{}) error

// ChangedFunc is a post-commit change listener. It runs once per variable
// in the outermost commit's write set, outside any transactional state.
type ChangedFunc func(newVal interface{})

// StmVariable is a single transactionally accessed location: a payload
// slot guarded by a versioned lock. Its payload is mutated only while the
// lock bit is held by the committing transaction.
type StmVariable struct {
	id   uint64
	val  atomic.Value
	lock internal.VersionedLock

	mu         sync.RWMutex
	validators []ValidateFunc
	watchers   []ChangedFunc
}

// NewStmVariable creates a variable holding value. Callable inside or
// outside any transaction; nil is a valid initial payload.
func NewStmVariable(value interface{}) *StmVariable {
	stmVariable := &StmVariable{
		id: variableIDs.Inc(),
	}
	stmVariable.val.Store(stmValue{val: value})
	return stmVariable
}

// ID retrieves the variable's process-unique identity.
func (sv *StmVariable) ID() uint64 {
	return sv.id
}

// OnValidate registers a pre-write validation listener. Listeners run
// synchronously inside the writer's transaction, before the write is
// buffered. Registration is append-only.
func (sv *StmVariable) OnValidate(f ValidateFunc) {
	if f == nil {
		return
	}
	sv.mu.Lock()
	sv.validators = append(sv.validators, f)
	sv.mu.Unlock()
}

// OnChanged registers a post-commit change listener. Registration is
// append-only.
func (sv *StmVariable) OnChanged(f ChangedFunc) {
	if f == nil {
		return
	}
	sv.mu.Lock()
	sv.watchers = append(sv.watchers, f)
	sv.mu.Unlock()
}

func (sv *StmVariable) validate(proposed interface{}) error {
	sv.mu.RLock()
	validators := sv.validators
	sv.mu.RUnlock()

	for _, f := range validators {
		if err := f(proposed); err != nil {
			return errors.WithMessage(ErrValidation, err.Error())
		}
	}
	return nil
}

// notifyChanged runs change listeners with the committed payload.
// Listener panics are swallowed.
func (sv *StmVariable) notifyChanged(newVal interface{}) {
	sv.mu.RLock()
	watchers := sv.watchers
	sv.mu.RUnlock()

	for _, f := range watchers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Debugw("change listener panicked", "variable", sv.id, "panic", r)
				}
			}()
			f(newVal)
		}()
	}
}

func (sv *StmVariable) loadValue() interface{} {
	return sv.val.Load().(stmValue).val
}

// storeValue publishes a payload. Only the transaction holding the
// variable's lock bit may call it.
func (sv *StmVariable) storeValue(newVal interface{}) {
	sv.val.Store(stmValue{val: newVal})
}
