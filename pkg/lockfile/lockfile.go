package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
)

// pollInterval is the safety-net poll period covering cross-process
// releases, which the in-process event stream can't see.
const pollInterval = 3 * time.Second

// Handle represents one successful lock acquisition. Unlock is
// serialized by the handle's mutex, so concurrent or repeated Unlock
// calls release the lock once and every later call is a no-op.
type Handle struct {
	path string
	uuid string
	reg  *registry

	mu       sync.Mutex
	released bool
}

// Path returns the normalized lock path this handle owns.
func (h *Handle) Path() string { return h.path }

var errRaceLost = errors.New("lockfile: lost in-process acquisition race")

// Lock acquires the cross-process advisory lock at path, blocking until
// it succeeds. Acquisition never times out by itself; wrap the call with
// a context-based deadline externally if one is required.
func Lock(path string) (*Handle, error) {
	return global.lock(path)
}

func (r *registry) lock(path string) (*Handle, error) {
	path, err := normalize(path)
	if err != nil {
		return nil, err
	}

	for {
		st := checkStatus(path, "")
		if st == available {
			h, err := r.tryCreateLock(path)
			if err == nil {
				return h, nil
			}
			if !errors.Is(err, errRaceLost) {
				return nil, err
			}
		}
		r.waitForLock(path)
	}
}

func (r *registry) tryCreateLock(path string) (*Handle, error) {
	if !r.tryAcquire(path) {
		return nil, errRaceLost
	}
	id := uuid.New().String()
	if err := writeMarker(path, os.Getpid(), id); err != nil {
		r.release(path)
		return nil, fmt.Errorf("failed to write lock marker %s: %w", path, err)
	}
	return &Handle{path: path, uuid: id, reg: r}, nil
}

func (r *registry) waitForLock(path string) {
	ch := r.subscribe(path)
	timer := time.NewTimer(pollInterval)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
	}
}

// Unlock releases h. Calling Unlock a second time on an already-released
// handle is a no-op, per spec.
func (h *Handle) Unlock() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}

	waiters, err := h.reg.releaseIfOwned(h.path, h.uuid)
	if err != nil {
		return err
	}
	h.released = true
	for _, ch := range waiters {
		close(ch)
	}
	return nil
}

func (r *registry) releaseIfOwned(path, uuid string) ([]chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := checkStatus(path, uuid)
	switch st {
	case availableInstance:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove lock marker %s: %w", path, err)
		}
	case available:
		// already cleaned up by another actor; nothing to unlink.
	default:
		return nil, miniotsterrors.UnableToUnlock(path, st == lockedDifferent)
	}

	delete(r.held, path)
	waiters := r.waiters[path]
	delete(r.waiters, path)
	return waiters, nil
}

// checkStatus reads the marker file at path and classifies it relative
// to the current process and, when verifying ownership for unlock, an
// expected uuid.
func checkStatus(path, expectUUID string) status {
	pid, uid, ok := readMarker(path)
	if !ok {
		return available
	}
	if pid == os.Getpid() {
		if expectUUID != "" && uid == expectUUID {
			return availableInstance
		}
		return lockedSelf
	}
	if pidAlive(pid) {
		return lockedDifferent
	}
	return available
}

func normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to normalize lock path %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}
