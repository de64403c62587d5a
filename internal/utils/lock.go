package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	lockFileSuffix = ".lock"
	lockRetryDelay = 500 * time.Millisecond
)

// ResultsDBPath resolves the results database location. An empty path means
// ~/.config/powerlole/results.sqlite; a leading ~ is expanded.
func ResultsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "powerlole", "results.sqlite"), nil
	}
	expanded, err := homedir.Expand(dbPath)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// ResultsLock keeps concurrent powerlole runs from writing to the same
// results database.
type ResultsLock struct {
	lock *flock.Flock
	Path string // resolved database path
}

// LockResults resolves dbPath, creates its directory and takes the writer
// lock. When another run holds it, it waits until that run finishes or ctx
// is done.
func LockResults(ctx context.Context, dbPath string) (*ResultsLock, error) {
	abs, err := ResultsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not resolve results database path: %w", err)
	}
	if err := EnsureDir(filepath.Dir(abs)); err != nil {
		return nil, err
	}

	l := flock.New(abs + lockFileSuffix)
	locked, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", abs, err)
	}
	if !locked {
		Log.Warnf("Results database %s is in use by another run, waiting for it to finish", abs)
		if locked, err = l.TryLockContext(ctx, lockRetryDelay); err != nil || !locked {
			l.Close()
			return nil, fmt.Errorf("waiting for lock on %s: %w", abs, err)
		}
	}
	return &ResultsLock{lock: l, Path: abs}, nil
}

// Unlock releases the writer lock.
func (l *ResultsLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		// Not holding the lock if the file is gone.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to unlock %s: %w", l.Path, err)
	}
	return nil
}
