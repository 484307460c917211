package shared

import "errors"

var (
	// ErrActorRequired occurs when a mutating request carries no actor.
	ErrActorRequired = errors.New("actor id required")
	// ErrLockNotObtained occurs when another writer holds the lock.
	ErrLockNotObtained = errors.New("lock not obtained")
)
