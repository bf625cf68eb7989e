package wallet

import (
	"log/slog"
	"sync"
)

// UserLockManager manages fine-grained locks per user ID so commission
// processing and payout updates for different users do not serialize.
type UserLockManager struct {
	locks    map[string]*sync.RWMutex
	locksMux sync.RWMutex
}

// NewUserLockManager creates a new user lock manager
func NewUserLockManager() *UserLockManager {
	return &UserLockManager{
		locks: make(map[string]*sync.RWMutex),
	}
}

// getUserLock returns a mutex for the specified user ID, creating one if it
// doesn't exist yet.
func (ulm *UserLockManager) getUserLock(userID string) *sync.RWMutex {
	ulm.locksMux.RLock()
	if lock, exists := ulm.locks[userID]; exists {
		ulm.locksMux.RUnlock()
		return lock
	}
	ulm.locksMux.RUnlock()

	ulm.locksMux.Lock()
	defer ulm.locksMux.Unlock()

	// Double-check in case another goroutine created it
	if lock, exists := ulm.locks[userID]; exists {
		return lock
	}

	newLock := &sync.RWMutex{}
	ulm.locks[userID] = newLock

	slog.Debug("Created new user lock", "user_id", userID)
	return newLock
}

// WithUserWriteLock executes a function while holding a write lock for the user
func (ulm *UserLockManager) WithUserWriteLock(userID string, fn func()) {
	lock := ulm.getUserLock(userID)
	lock.Lock()
	defer lock.Unlock()

	fn()
}

// WithUserReadLock executes a function while holding a read lock for the user
func (ulm *UserLockManager) WithUserReadLock(userID string, fn func()) {
	lock := ulm.getUserLock(userID)
	lock.RLock()
	defer lock.RUnlock()

	fn()
}

// LockStats returns statistics about the lock manager
func (ulm *UserLockManager) LockStats() map[string]interface{} {
	ulm.locksMux.RLock()
	defer ulm.locksMux.RUnlock()

	return map[string]interface{}{
		"total_user_locks": len(ulm.locks),
	}
}
