package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock serializes access to a store document across processes.
type FileLock struct {
	path   string
	file   *os.File
	mu     sync.Mutex
	holder LockHolder
}

// LockHolder is written into the lock file while the lock is held.
type LockHolder struct {
	Process   string    `json:"process"`
	PID       int       `json:"pid"`
	Operation string    `json:"operation"`
	LockedAt  time.Time `json:"locked_at"`
}

// NewFileLock creates a lock next to the document at docPath.
func NewFileLock(docPath string) *FileLock {
	return &FileLock{path: docPath + ".lock"}
}

// Lock acquires the exclusive lock, polling until timeout.
func (fl *FileLock) Lock(operation string, timeout time.Duration) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fl.path), 0o700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			file.Close()
			return fmt.Errorf("lock %s timeout after %v", fl.path, timeout)
		}
		time.Sleep(20 * time.Millisecond)
	}

	fl.file = file
	fl.holder = LockHolder{
		Process:   filepath.Base(os.Args[0]),
		PID:       os.Getpid(),
		Operation: operation,
		LockedAt:  time.Now(),
	}
	if err := fl.writeHolder(); err != nil {
		fl.release()
		return fmt.Errorf("write lock holder: %w", err)
	}
	return nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (fl *FileLock) Unlock() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.release()
}

func (fl *FileLock) release() error {
	if fl.file == nil {
		return nil
	}
	if err := unix.Flock(int(fl.file.Fd()), unix.LOCK_UN); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	err := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}

func (fl *FileLock) writeHolder() error {
	if err := fl.file.Truncate(0); err != nil {
		return err
	}
	if _, err := fl.file.Seek(0, 0); err != nil {
		return err
	}
	if err := json.NewEncoder(fl.file).Encode(fl.holder); err != nil {
		return err
	}
	return fl.file.Sync()
}

// WithLock runs fn while holding the lock for docPath.
func WithLock(docPath, operation string, timeout time.Duration, fn func() error) error {
	lock := NewFileLock(docPath)
	if err := lock.Lock(operation, timeout); err != nil {
		return err
	}
	defer lock.Unlock()

	return fn()
}
