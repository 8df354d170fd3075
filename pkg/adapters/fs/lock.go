package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// lockPollInterval is how often a contended lock file is retried.
const lockPollInterval = 10 * time.Millisecond

// pathLocks serializes writers to the same document inside this process.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	ch   chan struct{}
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*pathLock)}
}

// acquire blocks until key is held or ctx is done.
func (p *pathLocks) acquire(ctx context.Context, key string) (func(), error) {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &pathLock{ch: make(chan struct{}, 1)}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			p.release(key, l)
		}, nil
	case <-ctx.Done():
		p.release(key, l)
		return nil, ctx.Err()
	}
}

func (p *pathLocks) release(key string, l *pathLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, key)
	}
}

// lockFile acquires a file-based lock shared with other processes working
// on the same root. It polls until the lock is acquired or ctx is done. A
// lock left behind by a dead process, or older than staleLockAge, is taken
// over.
func lockFile(ctx context.Context, dir, key string) (func(), error) {
	sum := sha256.Sum256([]byte(key))
	fullLockPath := filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")

	for {
		f, err := os.OpenFile(fullLockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0666)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() {
				os.Remove(fullLockPath)
			}, nil
		}

		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
				return nil, fmt.Errorf("failed to create lock directory: %w", mkErr)
			}
			continue
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		if breakStaleLock(fullLockPath) {
			continue
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// staleLockAge bounds how long a lock file is honoured. Writers hold the
// lock for one read-compare-write, far below this.
const staleLockAge = 30 * time.Second

// breakStaleLock removes the lock file at lockPath if its owner is gone.
// It reports whether the caller should retry immediately.
func breakStaleLock(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		// Released in the meantime.
		return os.IsNotExist(err)
	}
	if !isStale(lockPath, info) {
		return false
	}

	// Move the file aside first, so only one waiter takes it over, then
	// check that what was moved is the stale file and not a fresh lock.
	aside := fmt.Sprintf("%s.stale-%d-%d", lockPath, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(lockPath, aside); err != nil {
		return os.IsNotExist(err)
	}
	movedInfo, err := os.Stat(aside)
	if err == nil && !os.SameFile(info, movedInfo) {
		// A live lock was moved; put it back unless someone holds the path.
		if linkErr := os.Link(aside, lockPath); linkErr != nil {
			os.Remove(aside)
			return false
		}
	}
	os.Remove(aside)
	return true
}

func isStale(lockPath string, info os.FileInfo) bool {
	if time.Since(info.ModTime()) > staleLockAge {
		return true
	}
	b, err := os.ReadFile(lockPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		// Owner has not written its pid yet.
		return false
	}
	return !processAlive(pid)
}
