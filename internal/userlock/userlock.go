// Package userlock serializes plan generation per user.
//
// A plan run reads the stored sessions, allocates against them and writes the
// result. Two runs for the same user must not interleave those steps, so both
// the HTTP server and the CLI take a per-user lock around them.
package userlock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrEmptyUser is returned when no user id is supplied.
var ErrEmptyUser = errors.New("userlock: user id is required")

// Locker acquires an exclusive per-user lock. The returned function releases it.
type Locker interface {
	Lock(ctx context.Context, userID string) (unlock func(), err error)
}

// KeyedMutex is an in-process Locker.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

// Lock blocks until the user's lock is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, userID string) (func(), error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}

	k.mu.Lock()
	e, ok := k.locks[userID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[userID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(userID, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { k.release(userID, e, true) })
	}, nil
}

func (k *KeyedMutex) release(userID string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, userID)
	}
	k.mu.Unlock()
}

// FileLocker holds one flock file per user so separate processes sharing a
// database exclude each other.
type FileLocker struct {
	dir        string
	retryDelay time.Duration
}

// NewFileLocker creates dir if needed and returns a FileLocker rooted there.
func NewFileLocker(dir string, retryDelay time.Duration) (*FileLocker, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if retryDelay <= 0 {
		retryDelay = 50 * time.Millisecond
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("userlock: create lock dir: %w", err)
	}
	return &FileLocker{dir: dir, retryDelay: retryDelay}, nil
}

// Path returns the lock file used for userID.
func (f *FileLocker) Path(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return filepath.Join(f.dir, "backlog-"+hex.EncodeToString(sum[:8])+".lock")
}

// Lock polls the user's lock file until it is acquired or ctx is done.
func (f *FileLocker) Lock(ctx context.Context, userID string) (func(), error) {
	if userID == "" {
		return nil, ErrEmptyUser
	}

	lock := flock.New(f.Path(userID))
	ok, err := lock.TryLockContext(ctx, f.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("userlock: acquire %s: %w", lock.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("userlock: acquire %s: lock not obtained", lock.Path())
	}

	var once sync.Once
	return func() {
		once.Do(func() { _ = lock.Unlock() })
	}, nil
}

// Chain acquires every locker in order and releases them in reverse. A server
// chains a KeyedMutex in front of a FileLocker so goroutines queue in memory
// before contending for the file.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

type chain []Locker

func (c chain) Lock(ctx context.Context, userID string) (func(), error) {
	unlocks := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, locker := range c {
		unlock, err := locker.Lock(ctx, userID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
