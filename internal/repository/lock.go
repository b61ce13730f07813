package repository

import (
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tyloni/oregon-grant-automation/internal/core"
)

// DefaultStaleAfter is how old a held lock must be before it is taken over.
const DefaultStaleAfter = 30 * time.Minute

// LockInfo is the metadata written into the lock file.
type LockInfo struct {
	PID        int       `yaml:"pid"`
	Hostname   string    `yaml:"hostname"`
	Owner      string    `yaml:"owner"` // e.g. "cli", "worker"
	AcquiredAt time.Time `yaml:"acquired_at"`
}

// FileLock is an advisory flock on a file in the data directory. It guards
// writers in different processes; it is not reentrant within one process.
type FileLock struct {
	path       string
	owner      string
	staleAfter time.Duration
	file       *os.File
}

// NewFileLock creates a lock at path held under owner's name.
func NewFileLock(path, owner string) *FileLock {
	return &FileLock{
		path:       path,
		owner:      owner,
		staleAfter: DefaultStaleAfter,
	}
}

// Acquire takes the lock without blocking. A lock whose holder has exited or
// that is older than the stale threshold is taken over.
func (l *FileLock) Acquire() error {
	return l.acquire(true)
}

func (l *FileLock) acquire(maySteal bool) error {
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &core.LockError{Operation: "acquire", Message: "open lock file", Err: err}
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("warning: failed to close lock file during error handling: %v", closeErr)
		}

		holder, readErr := l.readInfo()
		if readErr == nil && maySteal && l.isStale(holder) {
			// A holder that is still alive keeps its flock on the unlinked inode,
			// so a takeover can overlap with it until it releases.
			_ = os.Remove(l.path)
			return l.acquire(false)
		}

		if readErr == nil {
			age := time.Since(holder.AcquiredAt).Round(time.Second)
			return &core.LockError{
				Operation: "acquire",
				Message: fmt.Sprintf("data directory locked by %s (PID %d on %s, %v ago)",
					holder.Owner, holder.PID, holder.Hostname, age),
				Err: err,
			}
		}
		return &core.LockError{Operation: "acquire", Message: "lock is held", Err: err}
	}

	// The path may have been unlinked or replaced between open and flock.
	if !l.holdsPath(file) {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()
		return &core.LockError{Operation: "acquire", Message: "lock file was replaced while acquiring"}
	}

	l.file = file

	hostname, _ := os.Hostname()
	data, err := yaml.Marshal(LockInfo{
		PID:        os.Getpid(),
		Hostname:   hostname,
		Owner:      l.owner,
		AcquiredAt: time.Now().UTC(),
	})
	if err != nil {
		return l.abort(fmt.Errorf("encode lock metadata: %w", err))
	}
	if err := file.Truncate(0); err != nil {
		return l.abort(fmt.Errorf("truncate lock file: %w", err))
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		return l.abort(fmt.Errorf("write lock metadata: %w", err))
	}
	return nil
}

// abort drops a lock that was taken but could not be annotated.
func (l *FileLock) abort(cause error) error {
	_ = l.Release()
	return &core.LockError{Operation: "acquire", Message: cause.Error(), Err: cause}
}

// Release releases the lock and removes the lock file.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}

	// Remove before unlocking so a waiter never locks a file that is about to vanish.
	removeErr := os.Remove(l.path)
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		log.Printf("warning: failed to release flock: %v", err)
	}
	if err := l.file.Close(); err != nil {
		log.Printf("warning: failed to close lock file: %v", err)
	}
	l.file = nil

	if removeErr != nil && !os.IsNotExist(removeErr) {
		return &core.LockError{Operation: "release", Message: "remove lock file", Err: removeErr}
	}
	return nil
}

// holdsPath reports whether file is still the inode at l.path.
func (l *FileLock) holdsPath(file *os.File) bool {
	opened, err := file.Stat()
	if err != nil {
		return false
	}
	current, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return os.SameFile(opened, current)
}

func (l *FileLock) readInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	if info.PID == 0 {
		return nil, fmt.Errorf("lock file has no holder")
	}
	return &info, nil
}

// isStale reports whether the holder has exited or held the lock too long.
func (l *FileLock) isStale(info *LockInfo) bool {
	if hostname, _ := os.Hostname(); hostname == info.Hostname {
		process, err := os.FindProcess(info.PID)
		if err != nil {
			return true
		}
		// On Unix, FindProcess always succeeds, so probe with signal 0
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return true
		}
	}

	return time.Since(info.AcquiredAt) > l.staleAfter
}
