package supervisor

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mensylisir/miniotst/pkg/downloader"
	"github.com/mensylisir/miniotst/pkg/miniotstconfig"
)

func TestIsReadyChecksStreamSpecificPattern(t *testing.T) {
	if !isReady("MinIO Object Storage Server", true) {
		t.Errorf("expected banner line on stderr to be ready")
	}
	if isReady("MinIO Object Storage Server", false) {
		t.Errorf("banner line on stdout must not signal ready")
	}
	if !isReady("Status:   1 Online, 0 Offline. waiting for connections", false) {
		t.Errorf("expected 'waiting for connections' on stdout to be ready")
	}
	if isReady("waiting for connections", true) {
		t.Errorf("'waiting for connections' on stderr must not signal ready")
	}
}

func TestFatalFromOutputAddressInUse(t *testing.T) {
	reason := fatalFromOutput("Listen tcp 0.0.0.0:63208: bind: address already in use")
	if reason == "" {
		t.Fatal("expected a fatal reason")
	}
}

func TestFatalFromOutputInitAndListen(t *testing.T) {
	reason := fatalFromOutput("exception in initAndListen: (InvalidOptions): bad data directory, terminating")
	if reason != "exception in initAndListen: (InvalidOptions): bad data directory, terminating" {
		t.Errorf("unexpected reason: %q", reason)
	}
}

func TestFatalFromOutputJSONVariant(t *testing.T) {
	line := `{"msg":"DBException in initAndListen, terminating","attr":{"error":"disk full"}}`
	reason := fatalFromOutput(line)
	if reason != "disk full" {
		t.Errorf("expected attr.error to be extracted, got %q", reason)
	}
}

func TestFatalFromOutputIgnoresBenignLines(t *testing.T) {
	if reason := fatalFromOutput("just a regular log line"); reason != "" {
		t.Errorf("expected no fatal reason, got %q", reason)
	}
}

func TestReplicaTransitionIsInformationalOnly(t *testing.T) {
	state, ok := replicaTransition("transition to PRIMARY from SECONDARY")
	if !ok || state != "PRIMARY" {
		t.Errorf("expected PRIMARY transition, got %q ok=%v", state, ok)
	}
	if _, ok := replicaTransition("nothing interesting here"); ok {
		t.Errorf("expected no transition match")
	}
}

func TestBuildArgsIncludesAddressOnlyWhenPortSet(t *testing.T) {
	args := buildArgs(63208, "127.0.0.1", "/tmp/data", []string{"--quiet"})
	want := []string{"server", "/tmp/data", "--address", "127.0.0.1:63208", "--quiet"}
	if len(args) != len(want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("got %v, want %v", args, want)
		}
	}

	noPort := buildArgs(0, "", "/tmp/data", nil)
	if len(noPort) != 2 || noPort[0] != "server" || noPort[1] != "/tmp/data" {
		t.Errorf("expected no --address when port is 0, got %v", noPort)
	}
}

func TestSelectPortForceSameOnOccupiedPortFails(t *testing.T) {
	port, err := pickEphemeralPort()
	if err != nil {
		t.Fatalf("pickEphemeralPort failed: %v", err)
	}
	l, err := listenOn(port)
	if err != nil {
		t.Fatalf("failed to occupy port: %v", err)
	}
	defer l.Close()

	if _, err := selectPort(port, true); err == nil {
		t.Fatal("expected an error when forceSame targets an occupied port")
	}
	got, err := selectPort(port, false)
	if err != nil {
		t.Fatalf("expected a fallback port, got error: %v", err)
	}
	if got == port {
		t.Errorf("expected a different port when not forcing, got the same %d", got)
	}
}

func TestGetURIFormatsTrailingSlashForEmptyDB(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	s.mu.Lock()
	s.cmd = fakeCmd(t)
	s.info = InstanceInfo{Port: 63208, IP: "127.0.0.1"}
	s.mu.Unlock()

	uri, err := s.GetURI("", "")
	if err != nil {
		t.Fatalf("GetURI returned error: %v", err)
	}
	if uri != "mongodb://127.0.0.1:63208/" {
		t.Errorf("got %q, want mongodb://127.0.0.1:63208/", uri)
	}
}

func TestGetURIUsesLoopbackWhenBoundToAllInterfaces(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	s.mu.Lock()
	s.cmd = fakeCmd(t)
	s.info = InstanceInfo{Port: 63208, IP: "0.0.0.0"}
	s.mu.Unlock()

	uri, err := s.GetURI("testdb", "")
	if err != nil {
		t.Fatalf("GetURI returned error: %v", err)
	}
	if uri != "mongodb://127.0.0.1:63208/testdb" {
		t.Errorf("got %q", uri)
	}
}

func TestStartRejectsFromInvalidState(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	s.state.set(StateStarting)

	err := s.Start(context.Background(), StartOptions{})
	if err == nil {
		t.Fatal("expected an error starting from StateStarting")
	}
}

func TestStartIsIdempotentWhenAlreadyRunning(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	s.state.set(StateRunning)

	if err := s.Start(context.Background(), StartOptions{}); err != nil {
		t.Errorf("expected Start to short-circuit on a running instance, got %v", err)
	}
}

func TestStopIsIdempotentOnNewSupervisor(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	if err := s.Stop(CleanupOptions{}); err != nil {
		t.Errorf("expected Stop on an unstarted supervisor to be a no-op, got %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected state stopped after Stop, got %s", s.State())
	}
}

func TestInstanceInfoMissingBeforeStart(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	if _, err := s.InstanceInfo(); err == nil {
		t.Fatal("expected InstanceInfoMissing before any Start call")
	}
}

// TestStartAndStopLifecycle spawns a real child (a short shell script
// standing in for the server binary) and drives it through a full
// start/ready/stop cycle, since the output-parsing and shutdown paths
// are only meaningfully exercised end to end.
func TestStartAndStopLifecycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-minio.sh")
	body := "#!/bin/sh\n" +
		"echo 'MinIO Object Storage Server' 1>&2\n" +
		"echo 'waiting for connections'\n" +
		"trap 'exit 0' INT\n" +
		"while true; do sleep 0.05; done\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("failed writing fake binary: %v", err)
	}

	s := New(miniotstconfig.NewResolver(dir), downloader.New())
	if err := s.Create(CreateOptions{BinaryPath: script, DataDir: filepath.Join(dir, "data"), LaunchTimeout: 3 * time.Second}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Start(context.Background(), StartOptions{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatalf("expected running state, got %s", s.State())
	}

	info, err := s.InstanceInfo()
	if err != nil {
		t.Fatalf("InstanceInfo returned error: %v", err)
	}
	if info.Port == 0 {
		t.Errorf("expected a selected port, got 0")
	}

	if err := s.Stop(CleanupOptions{}); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped state after Stop, got %s", s.State())
	}
}

func fakeReadyScript(t *testing.T, dir string) string {
	t.Helper()
	script := filepath.Join(dir, "fake-minio.sh")
	body := "#!/bin/sh\n" +
		"echo 'MinIO Object Storage Server' 1>&2\n" +
		"echo 'waiting for connections'\n" +
		"trap 'exit 0' INT\n" +
		"while true; do sleep 0.05; done\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("failed writing fake binary: %v", err)
	}
	return script
}

// TestEnsureInstanceFromNewUsesPriorCreateOptions locks in that
// EnsureInstance never clobbers options a caller already recorded via a
// direct Create call.
func TestEnsureInstanceFromNewUsesPriorCreateOptions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}
	dir := t.TempDir()
	script := fakeReadyScript(t, dir)

	s := New(miniotstconfig.NewResolver(dir), downloader.New())
	if err := s.Create(CreateOptions{BinaryPath: script, DataDir: filepath.Join(dir, "data"), LaunchTimeout: 3 * time.Second}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	info, err := s.EnsureInstance(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstance returned error: %v", err)
	}
	if info.DataDir != filepath.Join(dir, "data") {
		t.Errorf("expected EnsureInstance to honor the prior Create's DataDir, got %q", info.DataDir)
	}
	if s.State() != StateRunning {
		t.Fatalf("expected running state, got %s", s.State())
	}
	_ = s.Stop(CleanupOptions{})
}

// TestEnsureInstanceFromNewWithoutCreateUsesDefaults covers the other
// legitimate call pattern: EnsureInstance with no preceding Create at
// all, which attempts Start with the zero-value CreateOptions instead of
// rejecting the call; with no binary to resolve, that Start fails and
// EnsureInstance returns the error.
func TestEnsureInstanceFromNewWithoutCreateUsesDefaults(t *testing.T) {
	s := New(miniotstconfig.NewResolver(t.TempDir()), downloader.New())
	_, err := s.EnsureInstance(context.Background())
	if err == nil {
		t.Fatal("expected an error since the zero-value BinaryPath resolves to nothing installed")
	}
}

// TestEnsureInstanceWhenAlreadyRunning covers the fast path: no Start is
// attempted, the existing instance's info is simply returned.
func TestEnsureInstanceWhenAlreadyRunning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}
	dir := t.TempDir()
	script := fakeReadyScript(t, dir)

	s := New(miniotstconfig.NewResolver(dir), downloader.New())
	if err := s.Create(CreateOptions{BinaryPath: script, DataDir: filepath.Join(dir, "data"), LaunchTimeout: 3 * time.Second}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Start(context.Background(), StartOptions{}); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer s.Stop(CleanupOptions{})

	info, err := s.EnsureInstance(context.Background())
	if err != nil {
		t.Fatalf("EnsureInstance returned error: %v", err)
	}
	if info.PID == 0 {
		t.Errorf("expected a populated PID from the already-running instance")
	}
}

func TestStartFailsOnFatalOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake binary is a shell script")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-minio.sh")
	body := "#!/bin/sh\necho 'address already in use' 1>&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("failed writing fake binary: %v", err)
	}

	s := New(miniotstconfig.NewResolver(dir), downloader.New())
	if err := s.Create(CreateOptions{BinaryPath: script, DataDir: filepath.Join(dir, "data"), LaunchTimeout: 3 * time.Second}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := s.Start(context.Background(), StartOptions{}); err == nil {
		t.Fatal("expected Start to fail on address-already-in-use output")
	}
	if s.State() != StateStopped {
		t.Errorf("expected stopped state after a failed launch, got %s", s.State())
	}
}

func listenOn(port int) (interface{ Close() error }, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", port))
}

func fakeCmd(t *testing.T) *exec.Cmd {
	t.Helper()
	return exec.Command("true")
}
