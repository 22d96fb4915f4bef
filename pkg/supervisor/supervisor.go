// Package supervisor implements the Instance Supervisor (C7): the
// state machine, spawn pipeline, output parsing, and two-phase shutdown
// for a single server instance.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/mensylisir/miniotst/pkg/downloader"
	"github.com/mensylisir/miniotst/pkg/locator"
	"github.com/mensylisir/miniotst/pkg/logger"
	"github.com/mensylisir/miniotst/pkg/miniotstconfig"
	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
	"github.com/mensylisir/miniotst/pkg/osprobe"
	"github.com/mensylisir/miniotst/pkg/resource"
)

// Supervisor owns one instance's lifecycle at a time. Start may be
// called again after Stop, spawning a fresh process under the same
// Supervisor.
type Supervisor struct {
	resolver   *miniotstconfig.Resolver
	downloader *downloader.Downloader
	log        *logger.Logger

	state *stateBag

	mu           sync.Mutex
	opts         CreateOptions
	cmd          *exec.Cmd
	done         <-chan error
	info         InstanceInfo
	dataDirOwned bool
}

// New constructs a Supervisor bound to resolver for config lookups and
// dl for binary provisioning. Both may be shared across Supervisors
// targeting the same DOWNLOAD_DIR.
func New(resolver *miniotstconfig.Resolver, dl *downloader.Downloader) *Supervisor {
	return &Supervisor{
		resolver:   resolver,
		downloader: dl,
		log:        logger.Get().With("component", "supervisor"),
		state:      newStateBag(),
	}
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() State { return s.state.get() }

// Create records opts for a subsequent Start. It never touches the
// filesystem or the network; it only validates that the supervisor
// hasn't already been used.
func (s *Supervisor) Create(opts CreateOptions) error {
	if st := s.state.get(); st != StateNew {
		return &miniotsterrors.StateError{Operation: "create", Allowed: []string{StateNew.String()}, Actual: st.String()}
	}
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	return nil
}

// resolveBinary finds or provisions the binary for opts, using C4
// (locator) first and C6 (downloader) only when RUNTIME_DOWNLOAD allows
// it and no candidate already exists on disk.
func (s *Supervisor) resolveBinary(ctx context.Context, opts CreateOptions) (string, error) {
	if opts.BinaryPath != "" {
		return opts.BinaryPath, nil
	}

	version := opts.Version
	if version == "" {
		version = s.resolver.Resolve(miniotstconfig.Version)
	}

	req := resource.BinaryRequest{
		Version:      version,
		OS:           osprobe.Probe(),
		Arch:         runtime.GOARCH,
		DownloadDir:  s.resolver.Resolve(miniotstconfig.DownloadDir),
		SystemBinary: s.resolver.Resolve(miniotstconfig.SystemBinary),
		CheckMD5:     s.resolver.Bool(miniotstconfig.MD5Check),
	}

	useArchiveName := s.resolver.Bool(miniotstconfig.UseArchiveNameForBinaryName)
	archiveOverride := s.resolver.Resolve(miniotstconfig.ArchiveName)
	binaryName, err := resource.BinaryName(req, archiveOverride, useArchiveName)
	if err != nil {
		return "", err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine working directory: %w", err)
	}
	candidates, err := locator.BuildCandidates(binaryName, req.DownloadDir, cwd)
	if err != nil {
		return "", err
	}
	if path, found, preferred := locator.Locate(candidates, req.SystemBinary, s.resolver.Bool(miniotstconfig.PreferGlobalPath)); found {
		return path, nil
	} else if !s.resolver.Bool(miniotstconfig.RuntimeDownload) {
		return "", miniotsterrors.BinaryNotFound(preferred)
	} else {
		req.DownloadDir = filepath.Dir(preferred)
	}

	downloadOpts := downloader.Options{
		Mirror:                      s.resolver.Resolve(miniotstconfig.DownloadMirror),
		DownloadURL:                 s.resolver.Resolve(miniotstconfig.DownloadURL),
		ArchiveNameOverride:         archiveOverride,
		UseArchiveNameForBinaryName: useArchiveName,
		MaxRedirects:                s.resolver.Int(miniotstconfig.MaxRedirects, 10),
		UseHTTP:                     s.resolver.Bool(miniotstconfig.UseHTTP),
	}
	return s.downloader.Provision(ctx, req, downloadOpts)
}

// Start resolves the binary, prepares the data directory, spawns the
// process, and races its output/exit against the launch timeout. On
// success the state transitions to running; on any failure it
// transitions to stopped, since a failed launch leaves nothing worth
// keeping around.
func (s *Supervisor) Start(ctx context.Context, startOpts StartOptions) error {
	switch st := s.state.get(); st {
	case StateRunning:
		// Already running: short-circuit rather than reject, matching the
		// documented "start is idempotent against a running instance"
		// behavior. Callers that want strict new/stopped-only semantics
		// should use EnsureInstance instead.
		return nil
	case StateNew, StateStopped:
		// proceed
	default:
		return &miniotsterrors.StateError{Operation: "start", Allowed: []string{StateNew.String(), StateStopped.String()}, Actual: st.String()}
	}
	s.state.set(StateStarting)

	s.mu.Lock()
	opts := s.opts
	previousPort := s.info.Port
	s.mu.Unlock()

	requestedPort := opts.Port
	if requestedPort == 0 && startOpts.ForceSamePort {
		requestedPort = previousPort
	}
	port, err := selectPort(requestedPort, startOpts.ForceSamePort)
	if err != nil {
		s.state.set(StateStopped)
		return err
	}

	dataDir := opts.DataDir
	owned := false
	if dataDir == "" {
		dir, err := defaultTempDataDir()
		if err != nil {
			s.state.set(StateStopped)
			return fmt.Errorf("failed to create temp data directory: %w", err)
		}
		dataDir, owned = dir, true
	} else if _, err := prepareDataDir(dataDir); err != nil {
		s.state.set(StateStopped)
		return err
	}

	binaryPath, err := s.resolveBinary(ctx, opts)
	if err != nil {
		s.state.set(StateStopped)
		return err
	}
	if err := ensureExecutable(binaryPath); err != nil {
		s.state.set(StateStopped)
		return err
	}

	args := buildArgs(port, opts.IP, dataDir, opts.ExtraArgs)
	cmd, handle, err := spawn(binaryPath, args, func(line string, isStderr bool) {
		s.log.Debugf("instance output (stderr=%v): %s", isStderr, line)
	})
	s.mu.Lock()
	s.cmd = cmd
	s.done = handle.done
	s.dataDirOwned = owned
	s.info = InstanceInfo{Port: port, IP: opts.IP, DataDir: dataDir}
	if cmd != nil && cmd.Process != nil {
		s.info.PID = cmd.Process.Pid
	}
	s.mu.Unlock()
	if err != nil {
		s.state.set(StateStopped)
		return err
	}

	timer := time.NewTimer(opts.launchTimeout())
	defer timer.Stop()
	select {
	case res := <-handle.result:
		if !res.ready {
			s.state.set(StateStopped)
			return res.err
		}
		s.state.set(StateRunning)
		return nil
	case <-timer.C:
		s.state.set(StateStopped)
		_ = cmd.Process.Kill()
		return miniotsterrors.StartBinaryFailed(fmt.Errorf("launch timed out after %s waiting for readiness", opts.launchTimeout()))
	case <-ctx.Done():
		s.state.set(StateStopped)
		_ = cmd.Process.Kill()
		return ctx.Err()
	}
}

// EnsureInstance returns the running instance's info. From new or
// stopped it calls Start first, with the options recorded by Create (the
// zero value if Create was never called); while starting it waits for
// the next transition and fails unless that transition is to running.
func (s *Supervisor) EnsureInstance(ctx context.Context) (InstanceInfo, error) {
	switch st := s.state.get(); st {
	case StateRunning:
		return s.InstanceInfo()
	case StateNew, StateStopped:
		// A caller may already have called Create with real options; don't
		// clobber them. Start reads whatever s.opts currently holds, which
		// is the zero value if Create was never called at all.
		if err := s.Start(ctx, StartOptions{}); err != nil {
			return InstanceInfo{}, miniotsterrors.EnsureFailed("start failed", err)
		}
		return s.InstanceInfo()
	case StateStarting:
		ch := s.state.subscribe()
		next := <-ch
		if next != StateRunning {
			return InstanceInfo{}, miniotsterrors.EnsureFailed(fmt.Sprintf("instance transitioned to %s while starting", next), nil)
		}
		return s.InstanceInfo()
	default:
		return InstanceInfo{}, miniotsterrors.EnsureFailed(fmt.Sprintf("instance is %s, cannot ensure", st), nil)
	}
}

// InstanceInfo returns the current instance descriptor. It is available
// once Start has spawned the process, even before readiness resolves.
func (s *Supervisor) InstanceInfo() (InstanceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return InstanceInfo{}, &miniotsterrors.InstanceInfoMissing{Accessor: "instance_info"}
	}
	return s.info, nil
}
