package pkg

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestVariableIDsAreMonotone(t *testing.T) {
	a := NewStmVariable(nil)
	b := NewStmVariable(nil)
	c := NewStmVariable(nil)

	require.Greater(t, b.ID(), a.ID())
	require.Greater(t, c.ID(), b.ID())
}

func TestNilPayload(t *testing.T) {
	blank := NewStmVariable(nil)

	got, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		return sc.Read(blank)
	})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestValidationVetoAbortsTransaction(t *testing.T) {
	counter := NewStmVariable(1)
	counter.OnValidate(func(proposed interface{}) error {
		if proposed.(int) < 0 {
			return errors.New("negative value")
		}
		return nil
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		return nil, sc.Write(counter, -5)
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, 1, readInt(t, counter))

	_, err = StmAtomic(func(sc *StmContext) (interface{}, error) {
		return nil, sc.Write(counter, 5)
	})
	require.NoError(t, err)
	require.Equal(t, 5, readInt(t, counter))
}

func TestValidationRunsInsideTransaction(t *testing.T) {
	counter := NewStmVariable(0)

	var current *StmContext
	runningDuringValidate := false
	counter.OnValidate(func(interface{}) error {
		runningDuringValidate = current.Running()
		return nil
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		current = sc
		return nil, sc.Write(counter, 1)
	})
	require.NoError(t, err)
	require.True(t, runningDuringValidate)
}

func TestChangedFiresOncePerCommittedWrite(t *testing.T) {
	counter := NewStmVariable(0)

	var notified []interface{}
	counter.OnChanged(func(newVal interface{}) {
		notified = append(notified, newVal)
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		if err := sc.Write(counter, 1); err != nil {
			return nil, err
		}
		// Buffered overwrite: a single commit, a single notification.
		return nil, sc.Write(counter, 2)
	})
	require.NoError(t, err)
	require.Equal(t, []interface{}{2}, notified)
}

func TestChangedDoesNotFireOnRollback(t *testing.T) {
	counter := NewStmVariable(0)
	errBoom := errors.New("boom")

	notifications := 0
	counter.OnChanged(func(interface{}) {
		notifications++
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		if err := sc.Write(counter, 1); err != nil {
			return nil, err
		}
		return nil, errBoom
	})
	require.ErrorIs(t, err, errBoom)
	require.Zero(t, notifications)
}

func TestChangedRunsOutsideTransaction(t *testing.T) {
	counter := NewStmVariable(0)

	var current *StmContext
	runningDuringNotify := true
	counter.OnChanged(func(interface{}) {
		runningDuringNotify = current.Running()
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		current = sc
		return nil, sc.Write(counter, 1)
	})
	require.NoError(t, err)
	require.False(t, runningDuringNotify)
}

func TestChangedListenerPanicIsSwallowed(t *testing.T) {
	counter := NewStmVariable(0)

	secondRan := false
	counter.OnChanged(func(interface{}) {
		panic("listener boom")
	})
	counter.OnChanged(func(interface{}) {
		secondRan = true
	})

	_, err := StmAtomic(func(sc *StmContext) (interface{}, error) {
		return nil, sc.Write(counter, 1)
	})
	require.NoError(t, err)
	require.True(t, secondRan)
	require.Equal(t, 1, readInt(t, counter))
}

func TestChangedNotFiredForReadOnlyCommits(t *testing.T) {
	counter := NewStmVariable(3)

	notifications := 0
	counter.OnChanged(func(interface{}) {
		notifications++
	})

	_, err := StmAtomicReadOnly(func(sc *StmContext) (interface{}, error) {
		return sc.Read(counter)
	})
	require.NoError(t, err)
	require.Zero(t, notifications)
}
