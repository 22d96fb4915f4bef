package supervisor

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// shutdownPhaseTimeout bounds each phase of the two-phase shutdown:
// first a SIGINT asking the server to flush and close cleanly, then, if
// it hasn't exited within shutdownPhaseTimeout, a SIGKILL.
const shutdownPhaseTimeout = 10 * time.Second

// Stop terminates the instance (if running) via the two-phase
// SIGINT-then-SIGKILL sequence and waits for it to exit. Stop is
// idempotent: calling it on an already-stopped supervisor is a no-op.
// If cleanup.DoCleanup is set, Stop additionally unlinks the data
// directory (refusing to do so if the process is still alive after
// both shutdown phases) and transitions the supervisor back to new,
// ready for another Create/Start.
func (s *Supervisor) Stop(cleanup CleanupOptions) error {
	if st := s.state.get(); st == StateStopped || st == StateNew {
		s.state.set(StateStopped)
		return s.maybeCleanup(cleanup, nil)
	}

	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	var stopErr error
	if cmd != nil && cmd.Process != nil && done != nil {
		stopErr = terminate(cmd.Process, done)
	}
	s.state.set(StateStopped)

	return s.maybeCleanup(cleanup, stopErr)
}

// maybeCleanup unlinks the data directory and transitions to new, but
// only when cleanup.DoCleanup is set and the process actually
// terminated (stopErr is nil); per spec, cleanup refuses to run while
// the process might still be alive. The owned temp directory is always
// removed; a caller-supplied directory is removed only when Force is
// also set.
func (s *Supervisor) maybeCleanup(cleanup CleanupOptions, stopErr error) error {
	if !cleanup.DoCleanup {
		return stopErr
	}
	if stopErr != nil {
		return stopErr
	}

	s.mu.Lock()
	dataDir := s.info.DataDir
	owned := s.dataDirOwned
	s.mu.Unlock()

	if dataDir != "" && (owned || cleanup.Force) {
		if err := os.RemoveAll(dataDir); err != nil {
			return err
		}
	}
	s.state.set(StateNew)
	return nil
}

// terminate sends SIGINT, waits up to shutdownPhaseTimeout for done to
// fire, and escalates to SIGKILL (waiting again) if it doesn't. The
// process's exit, however it happens, is not itself treated as an
// error: Stop succeeded once the process is gone.
func terminate(proc *os.Process, done <-chan error) error {
	if err := proc.Signal(syscall.SIGINT); err != nil {
		// Process may already be gone; fall through to the wait below,
		// which will return promptly in that case.
		_ = err
	}

	select {
	case <-done:
		return nil
	case <-time.After(shutdownPhaseTimeout):
	}

	if err := proc.Kill(); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-time.After(shutdownPhaseTimeout):
		return fmt.Errorf("process %d still alive after SIGINT and SIGKILL, each given %s to take effect", proc.Pid, shutdownPhaseTimeout)
	}
}
