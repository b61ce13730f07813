package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tyloni/oregon-grant-automation/internal/core"
)

func TestFileLock(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".lock")
		lock := NewFileLock(lockPath, "cli")

		require.NoError(t, lock.Acquire())
		assert.FileExists(t, lockPath)

		data, err := os.ReadFile(lockPath)
		require.NoError(t, err)
		var info LockInfo
		require.NoError(t, yaml.Unmarshal(data, &info))
		assert.Equal(t, os.Getpid(), info.PID)
		assert.Equal(t, "cli", info.Owner)

		require.NoError(t, lock.Release())
		assert.NoFileExists(t, lockPath)
	})

	t.Run("second holder is refused", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".lock")
		first := NewFileLock(lockPath, "cli")
		require.NoError(t, first.Acquire())
		defer first.Release()

		second := NewFileLock(lockPath, "worker")
		err := second.Acquire()
		require.Error(t, err)

		var lockErr *core.LockError
		require.ErrorAs(t, err, &lockErr)
		assert.Equal(t, "acquire", lockErr.Operation)
		assert.Contains(t, lockErr.Message, "locked by cli")
	})

	t.Run("release without acquire", func(t *testing.T) {
		lock := NewFileLock(filepath.Join(t.TempDir(), ".lock"), "cli")
		assert.NoError(t, lock.Release())
	})

	t.Run("reacquire after release", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), ".lock")
		lock := NewFileLock(lockPath, "cli")

		require.NoError(t, lock.Acquire())
		require.NoError(t, lock.Release())
		require.NoError(t, lock.Acquire())
		require.NoError(t, lock.Release())
	})
}

func TestFileLockStaleness(t *testing.T) {
	hostname, _ := os.Hostname()
	lock := NewFileLock(filepath.Join(t.TempDir(), ".lock"), "cli")

	live := &LockInfo{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now()}
	assert.False(t, lock.isStale(live))

	old := &LockInfo{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now().Add(-time.Hour)}
	assert.True(t, lock.isStale(old))

	remote := &LockInfo{PID: 1, Hostname: hostname + "-elsewhere", AcquiredAt: time.Now()}
	assert.False(t, lock.isStale(remote))
}

func TestFileLockStaleTakeover(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".lock")
	first := NewFileLock(lockPath, "cli")
	require.NoError(t, first.Acquire())

	// Age the holder's metadata past the stale threshold.
	hostname, _ := os.Hostname()
	data, err := yaml.Marshal(LockInfo{PID: os.Getpid(), Hostname: hostname, Owner: "cli", AcquiredAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, data, 0o644))

	second := NewFileLock(lockPath, "worker")
	require.NoError(t, second.Acquire())
	assert.True(t, second.holdsPath(second.file))
	assert.False(t, first.holdsPath(first.file))

	raw, err := os.ReadFile(lockPath)
	require.NoError(t, err)
	var info LockInfo
	require.NoError(t, yaml.Unmarshal(raw, &info))
	assert.Equal(t, "worker", info.Owner)

	require.NoError(t, second.Release())
	require.NoError(t, first.Release())
}

func TestFileLockHoldsPath(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), ".lock")
	lock := NewFileLock(lockPath, "cli")
	require.NoError(t, lock.Acquire())
	defer lock.Release()
	assert.True(t, lock.holdsPath(lock.file))

	// Replacing the file at the path detaches the held descriptor from it.
	require.NoError(t, os.Remove(lockPath))
	require.NoError(t, os.WriteFile(lockPath, []byte("pid: 1\n"), 0o644))
	assert.False(t, lock.holdsPath(lock.file))
}

func TestFileLockLeftoverFile(t *testing.T) {
	// A lock file without a live flock holder is simply reused.
	lockPath := filepath.Join(t.TempDir(), ".lock")
	data, err := yaml.Marshal(LockInfo{PID: 999999, Hostname: "gone", Owner: "cli", AcquiredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(lockPath, data, 0o644))

	lock := NewFileLock(lockPath, "worker")
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "record.yaml")

	require.NoError(t, writeFileAtomic(path, []byte("first")))
	require.NoError(t, writeFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	existed, err := removeFile(path)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = removeFile(path)
	require.NoError(t, err)
	assert.False(t, existed)
}
