package supervisor

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
)

// pickEphemeralPort asks the OS for a free TCP port by binding to :0 and
// immediately releasing it. There's an inherent TOCTOU race between this
// and the child's own bind, which is why the output parser reports
// "address already in use" in the child's output with its own "already
// in use" message rather than a generic launch failure.
func pickEphemeralPort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("failed to pick an ephemeral port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// probePortFree reports whether port can currently be bound.
func probePortFree(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// selectPort implements the Start pipeline's port-selection step: a
// caller-supplied port is used if free; if occupied, a different free
// port is chosen unless forceSame was requested, in which case the
// occupied port is a hard failure. requested == 0 always picks a fresh
// ephemeral port.
func selectPort(requested int, forceSame bool) (int, error) {
	if requested == 0 {
		return pickEphemeralPort()
	}
	if probePortFree(requested) {
		return requested, nil
	}
	if forceSame {
		return 0, miniotsterrors.InstanceErrorFromOutput(fmt.Sprintf("Port %d already in use", requested))
	}
	return pickEphemeralPort()
}

// ensureExecutable verifies path exists and is executable by its owner,
// widening its mode to 0o755 if it exists but isn't.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return miniotsterrors.BinaryNotFound(path)
	}
	if info.Mode()&0o100 != 0 {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return miniotsterrors.InsufficientPermissions(path, err)
	}
	return nil
}

// buildArgs assembles the binary's command-line arguments: `server
// <data_path> [extra_args...]`, per spec, with the resolved bind
// address injected ahead of any caller-supplied extra args so the
// latter can still override it.
func buildArgs(port int, ip, dataDir string, extra []string) []string {
	args := []string{"server", dataDir}
	if port != 0 {
		args = append(args, "--address", fmt.Sprintf("%s:%d", ip, port))
	}
	return append(args, extra...)
}

// spawnResult is the outcome of racing the child's output/exit against
// the launch timeout.
type spawnResult struct {
	ready bool
	err   error
}

// spawnHandle bundles the channels a caller needs for the lifetime of a
// spawned child: result fires exactly once with the launch outcome;
// done fires exactly once, whenever the process actually exits
// (whether that's during the launch race or long after, via a Stop
// call or a crash).
type spawnHandle struct {
	result <-chan spawnResult
	done   <-chan error
}

// spawn starts binaryPath with args, piping stdout/stderr through
// onLine for as long as the process runs. The *exec.Cmd is always
// returned (non-nil) so the caller can track it for Stop even on a
// failed launch.
func spawn(binaryPath string, args []string, onLine func(line string, isStderr bool)) (*exec.Cmd, spawnHandle, error) {
	cmd := exec.Command(binaryPath, args...)
	cmd.SysProcAttr = deathSigAttr()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return cmd, spawnHandle{}, miniotsterrors.StartBinaryFailed(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return cmd, spawnHandle{}, miniotsterrors.StartBinaryFailed(err)
	}

	if err := cmd.Start(); err != nil {
		return cmd, spawnHandle{}, miniotsterrors.StartBinaryFailed(rosettaHint(err))
	}

	lines := make(chan lineEvent, 64)
	var scanners sync.WaitGroup
	scanners.Add(2)
	go func() { defer scanners.Done(); scanInto(stdout, false, lines) }()
	go func() { defer scanners.Done(); scanInto(stderr, true, lines) }()
	go func() { scanners.Wait(); close(lines) }()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	result := make(chan spawnResult, 1)
	doneOut := make(chan error, 1)
	go func() {
		resolved := false
		resolve := func(r spawnResult) {
			if !resolved {
				resolved = true
				result <- r
			}
		}
		for ev := range lines {
			if onLine != nil {
				onLine(ev.line, ev.isStderr)
			}
			if isReady(ev.line, ev.isStderr) {
				resolve(spawnResult{ready: true})
			} else if reason := fatalFromOutput(ev.line); reason != "" {
				resolve(spawnResult{err: miniotsterrors.InstanceErrorFromOutput(reason)})
			}
		}
		// Output streams closed; the child has exited (or is about to).
		// Any exit reaching this point happened before readiness, which is
		// itself an error regardless of exit code. Always forward the raw
		// exit to doneOut for Stop/monitoring.
		waitErr := <-waitDone
		resolve(spawnResult{err: exitBeforeReady(waitErr)})
		doneOut <- waitErr
	}()

	return cmd, spawnHandle{result: result, done: doneOut}, nil
}

type lineEvent struct {
	line     string
	isStderr bool
}

func scanInto(r io.Reader, isStderr bool, events chan<- lineEvent) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		events <- lineEvent{line: scanner.Text(), isStderr: isStderr}
	}
}

// closeErrorFor classifies a child exit observed outside a clean Stop
// call. A clean exit is code 0, or code 12 on Windows (that binary
// family's SIGINT-equivalent convention, per spec.md — unverified
// against the real upstream binary and worth revisiting if it proves
// wrong). SIGILL gets an AVX hint attached to the error, as a prefix of
// its message; a
// suspiciously large Windows exit code gets a colored vc_redist hint on
// a TTY, since both are frequent, fixable causes of "binary exits
// instantly".
func closeErrorFor(waitErr error) error {
	if waitErr == nil {
		return nil
	}
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		return miniotsterrors.UnexpectedClose(-1, "")
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return miniotsterrors.UnexpectedClose(exitErr.ExitCode(), "")
	}
	if status.Signaled() {
		sig := status.Signal()
		err := miniotsterrors.UnexpectedClose(-1, sig.String())
		if sig == syscall.SIGILL {
			err = miniotsterrors.Wrap(err, "likely missing AVX support on this CPU")
		}
		return err
	}

	code := status.ExitStatus()
	if runtime.GOOS == "windows" && code == 12 {
		return nil
	}
	if code == 0 {
		return nil
	}
	if runtime.GOOS == "windows" && code > 1_000_000_000 {
		hint := "missing VC++ runtime; install the latest vc_redist"
		if color.NoColor {
			fmt.Fprintln(os.Stderr, hint)
		} else {
			color.Yellow(hint)
		}
	}
	return miniotsterrors.UnexpectedClose(code, "")
}

// exitBeforeReady guarantees a non-nil error for a process that exited
// during the launch race, even when the exit itself looked clean.
func exitBeforeReady(waitErr error) error {
	if err := closeErrorFor(waitErr); err != nil {
		return err
	}
	return miniotsterrors.UnexpectedClose(0, "")
}

// rosettaHint augments a macOS ARM64 "spawn Unknown system error -86"
// failure with a hint that the binary likely needs Rosetta, since that
// specific errno otherwise gives no indication why the spawn failed.
func rosettaHint(err error) error {
	if err == nil || runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return err
	}
	if strings.Contains(err.Error(), "-86") {
		return miniotsterrors.Wrap(err, "binary may require Rosetta on Apple Silicon (spawn error -86)")
	}
	return err
}

// prepareDataDir creates dataDir (and its parents) if it doesn't exist,
// returning whether this call created it. Start never counts a
// caller-supplied directory as owned, even one created here, so Stop's
// cleanup removes it only when CleanupOptions.Force is set.
func prepareDataDir(dataDir string) (created bool, err error) {
	if dataDir == "" {
		return false, fmt.Errorf("data directory must not be empty")
	}
	if _, err := os.Stat(dataDir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return true, nil
}

func defaultTempDataDir() (string, error) {
	return os.MkdirTemp("", "minio-tst-")
}
