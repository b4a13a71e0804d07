package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when a lock could not be taken before the context ended
var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work on a single key across writers
type Locker interface {
	// Acquire blocks until the key is held or ctx is done.
	// The returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// RoomKey is the lock key for room-scoped writes
func RoomKey(roomID uuid.UUID) string {
	return fmt.Sprintf("lock:room:%s", roomID)
}
