// Package pkg provides software transactional memory over TL2 concurrency
// control: a global version clock, per-variable versioned locks, deferred
// write logs and a read-set revalidation commit protocol, extended with
// nested transactions and a read-only fast path.
package pkg

import "github.com/merino/internal"

var versionClock internal.VersionClock

// StmAtomic runs block in a read-write transaction, retrying until it
// commits without conflicts. ErrConflict never escapes this call; any
// other failure rolls the transaction back and propagates unchanged.
func StmAtomic(block Block) (interface{}, error) {
	sc := &StmContext{}
	return sc.run(block, false)
}

// StmAtomicReadOnly runs block in a read-only transaction. Reads validate
// in O(1) against the snapshot and keep no read set; writes fail with
// ErrReadOnly.
func StmAtomicReadOnly(block Block) (interface{}, error) {
	sc := &StmContext{}
	return sc.run(block, true)
}
