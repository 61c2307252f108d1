package stock

import (
	"context"
)

// LockMode selects shared or exclusive ownership.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// String implements fmt.Stringer.
func (m LockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}

// Locker serializes recomputes. Acquire blocks until the lock is held or
// ctx is done; the returned func releases it and is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, mode LockMode) (release func(), err error)
}

// TxLocker is implemented by lockers that can tie a lock to the transaction
// carried by ctx. Single-scope recomputes prefer it: the lock lives on the
// transaction's connection and is released at commit or rollback.
type TxLocker interface {
	LockInTx(ctx context.Context, key string, mode LockMode) error
}
