// Package miniotsterrors defines the typed error taxonomy surfaced by
// every component of the provisioning and supervision subsystem. Each
// kind carries the fields a caller needs to branch on without parsing a
// message string; all of them compose with errors.As/errors.Is and wrap
// an optional cause via github.com/pkg/errors.
package miniotsterrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// StateError reports an operation invoked while the supervisor was in a
// state that disallows it.
type StateError struct {
	Operation string
	Allowed   []string
	Actual    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid state %q, expected one of %v", e.Operation, e.Actual, e.Allowed)
}

// LockfileError reports a failure acquiring or releasing the cross
// process marker-file lock.
type LockfileError struct {
	Path   string
	Reason string
	cause  error
}

func (e *LockfileError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("lockfile %s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("lockfile %s: %s", e.Path, e.Reason)
}

func (e *LockfileError) Unwrap() error { return e.cause }

// UnknownStatus is returned when check() observes a marker file state
// outside {available, availableInstance, lockedSelf, lockedDifferent}.
func UnknownStatus(path string) error {
	return &LockfileError{Path: path, Reason: "unknown lock status"}
}

// UnableToUnlock distinguishes unlocking a handle this process doesn't
// own (foreign) from a bookkeeping inconsistency in our own state
// (self).
func UnableToUnlock(path string, foreign bool) error {
	reason := "unable to unlock: not held by this instance"
	if foreign {
		reason = "unable to unlock: held by a different, live process"
	}
	return &LockfileError{Path: path, Reason: reason}
}

// PlatformError reports an unrecognized or unsupported OS platform
// token.
type PlatformError struct {
	Platform string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("unknown platform %q", e.Platform)
}

// ArchError reports an unrecognized architecture token, or one that is
// unsupported on the given platform.
type ArchError struct {
	Arch     string
	Platform string
}

func (e *ArchError) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("unknown architecture %q", e.Arch)
	}
	return fmt.Sprintf("architecture %q unsupported on platform %q", e.Arch, e.Platform)
}

// VersionError reports a version string miniotst cannot coerce to
// semver, or a known incompatibility between a valid version and the
// target distro/arch.
type VersionError struct {
	Version string
	Reason  string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version %q: %s", e.Version, e.Reason)
}

// UncoercibleVersion reports a version string that doesn't parse as
// semver and doesn't match the "-latest" sentinel pattern.
func UncoercibleVersion(version string) error {
	return &VersionError{Version: version, Reason: "cannot be coerced to a semantic version"}
}

// KnownVersionIncompatibility reports a (distro, arch, version) triple
// that is documented as unsupported, e.g. ARM64 on RHEL < 8.2.
func KnownVersionIncompatibility(version, detail string) error {
	return &VersionError{Version: version, Reason: "known incompatibility: " + detail}
}

// RegexError reports a failed structured parse of an archive or binary
// name, e.g. a missing capture group.
type RegexError struct {
	Input   string
	Pattern string
}

func (e *RegexError) Error() string {
	return fmt.Sprintf("pattern %q did not match input %q", e.Pattern, e.Input)
}

// FilesystemError reports a local filesystem precondition failure: a
// binary that can't be found, or one whose permissions can't be made
// executable.
type FilesystemError struct {
	Path   string
	Reason string
	cause  error
}

func (e *FilesystemError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *FilesystemError) Unwrap() error { return e.cause }

// BinaryNotFound reports that no candidate location held the requested
// binary and no download was attempted or succeeded.
func BinaryNotFound(path string) error {
	return &FilesystemError{Path: path, Reason: "binary not found"}
}

// InsufficientPermissions reports that a binary exists but could not be
// made (or confirmed) executable.
func InsufficientPermissions(path string, cause error) error {
	return &FilesystemError{Path: path, Reason: "insufficient permissions", cause: cause}
}

// NetworkError reports an HTTP or checksum failure during download.
type NetworkError struct {
	URL        string
	StatusCode int
	Reason     string
	cause      error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.URL, e.Reason, e.StatusCode)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.URL, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Reason)
}

func (e *NetworkError) Unwrap() error { return e.cause }

// DownloadFailed reports a non-2xx HTTP response or transport failure.
// A 403 is reported distinctly because it almost always means the
// requested version/platform combination has no published archive.
func DownloadFailed(url string, statusCode int, cause error) error {
	if statusCode == 403 {
		return &NetworkError{URL: url, StatusCode: statusCode, Reason: "version/platform not available"}
	}
	if statusCode != 0 {
		return &NetworkError{URL: url, StatusCode: statusCode, Reason: "unexpected HTTP status"}
	}
	return &NetworkError{URL: url, Reason: "transport error", cause: cause}
}

// Md5CheckFailed reports a checksum mismatch between the downloaded
// archive and its published digest.
func Md5CheckFailed(url, want, got string) error {
	return &NetworkError{URL: url, Reason: fmt.Sprintf("md5 mismatch: want %s, got %s", want, got)}
}

// ProcessError reports a failure spawning or supervising the child
// process.
type ProcessError struct {
	Reason string
	cause  error
}

func (e *ProcessError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *ProcessError) Unwrap() error { return e.cause }

// StartBinaryFailed reports that the child process never obtained a
// PID.
func StartBinaryFailed(cause error) error {
	return &ProcessError{Reason: "failed to start binary", cause: cause}
}

// UnexpectedClose reports a child exit with a code/signal combination
// outside the accepted clean-shutdown set.
func UnexpectedClose(code int, signal string) error {
	reason := fmt.Sprintf("process exited unexpectedly with code %d", code)
	if signal != "" {
		reason = fmt.Sprintf("process terminated by signal %s", signal)
	}
	return &ProcessError{Reason: reason}
}

// InstanceErrorFromOutput reports a fatal condition parsed from the
// child's stdout/stderr.
func InstanceErrorFromOutput(message string) error {
	return &ProcessError{Reason: message}
}

// InstanceInfoMissing reports that an accessor requiring an active
// instance descriptor was called before one existed.
type InstanceInfoMissing struct {
	Accessor string
}

func (e *InstanceInfoMissing) Error() string {
	return fmt.Sprintf("%s: instance info not available", e.Accessor)
}

// EnsureError reports that ensure_instance could not produce a running
// instance.
type EnsureError struct {
	Reason string
	cause  error
}

func (e *EnsureError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ensure_instance: %s: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("ensure_instance: %s", e.Reason)
}

func (e *EnsureError) Unwrap() error { return e.cause }

// EnsureFailed wraps the underlying create/start failure ensure_instance
// encountered, or reports a bad precondition (wrong state) with no
// cause.
func EnsureFailed(reason string, cause error) error {
	return &EnsureError{Reason: reason, cause: cause}
}

// Wrap attaches additional context to cause in the teacher's
// pkg/errors idiom, preserving it for errors.As/errors.Is and
// errors.Cause.
func Wrap(cause error, message string) error {
	if cause == nil {
		return nil
	}
	return errors.WithMessage(cause, message)
}
