//go:build !windows
// +build !windows

package instance

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// platformLock is the OS handle type InstanceManager.lock stores on every
// non-Windows target: an open *os.File held under an advisory flock.
type platformLock = *os.File

// AcquireLock acquires an exclusive flock on the lock file to prevent
// multiple instances from starting.
func (m *InstanceManager) AcquireLock() error {
	lockPath := m.pidFilePath + ".lock"

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("failed to acquire lock (another instance may be starting): %w", err)
	}

	m.lock = f
	m.acquiredLock = true

	// Write current PID to lock file for debugging. Non-fatal.
	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(fmt.Sprintf("%d", os.Getpid())), 0)
	}

	return nil
}

// ReleaseLock releases the exclusive lock.
func (m *InstanceManager) ReleaseLock() error {
	if !m.acquiredLock {
		return nil
	}

	if m.lock != nil {
		if err := unix.Flock(int(m.lock.Fd()), unix.LOCK_UN); err != nil {
			fmt.Printf("Warning: Failed to unlock lock file: %v\n", err)
		}
		m.lock.Close()
		m.lock = nil
	}

	lockPath := m.pidFilePath + ".lock"
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Failed to remove lock file: %v\n", err)
	}

	m.acquiredLock = false
	return nil
}
