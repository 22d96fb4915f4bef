package supervisor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// readinessStderrPattern and readinessStdoutPattern are checked against
// their respective stream only: the server's banner line goes to
// stderr, its "waiting for connections" line goes to stdout.
var (
	readinessStderrPattern = regexp.MustCompile(`(?i)MinIO Object Storage Server`)
	readinessStdoutPattern = regexp.MustCompile(`(?i)waiting for connections`)
)

var (
	addressInUsePattern    = regexp.MustCompile(`address already in use`)
	portFromLinePattern    = regexp.MustCompile(`:(\d+):\s*address already in use`)
	initAndListenPattern   = regexp.MustCompile(`exception in initAndListen: \(([^)]+)\): (.*)`)
	curlMissingPattern     = regexp.MustCompile(`CURL_OPENSSL_[34] not found`)
	sharedLibPattern       = regexp.MustCompile(`\b(lib[^:]+): cannot open shared object`)
	abortingPattern        = regexp.MustCompile(`\*\*\*aborting after`)
	transitionPattern      = regexp.MustCompile(`transition to (\w+) from (\w+)`)
	primaryCompletePattern = regexp.MustCompile(`transition to primary complete; database writes are now permitted`)
)

// isReady reports whether line, observed on the given stream, signals
// the server has started listening.
func isReady(line string, isStderr bool) bool {
	if isStderr {
		return readinessStderrPattern.MatchString(line)
	}
	return readinessStdoutPattern.MatchString(line)
}

// fatalFromOutput returns a non-empty reason if line reports a
// condition the process cannot recover from. It checks the plain-text
// patterns first, then the structured JSON `DBException in
// initAndListen,` variant whose message lives at `attr.error`.
func fatalFromOutput(line string) string {
	if addressInUsePattern.MatchString(line) {
		if m := portFromLinePattern.FindStringSubmatch(line); m != nil {
			return fmt.Sprintf("Port %s already in use", m[1])
		}
		return "Port already in use"
	}
	if m := initAndListenPattern.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("exception in initAndListen: (%s): %s", m[1], m[2])
	}
	if curlMissingPattern.MatchString(line) {
		return strings.TrimSpace(line)
	}
	if m := sharedLibPattern.FindStringSubmatch(line); m != nil {
		return fmt.Sprintf("%s: cannot open shared object", m[1])
	}
	if abortingPattern.MatchString(line) {
		return strings.TrimSpace(line)
	}

	if !gjson.Valid(line) {
		return ""
	}
	msg := gjson.Get(line, "msg").String()
	if strings.Contains(msg, "DBException in initAndListen,") {
		if attrErr := gjson.Get(line, "attr.error").String(); attrErr != "" {
			return attrErr
		}
		return msg
	}
	return ""
}

// replicaTransition reports a `transition to <S> from <P>` informational
// line. These never affect readiness or failure — spec.md calls this
// output vestigial, since this system has no replication protocol — but
// are still surfaced for observability parity with the upstream binary.
func replicaTransition(line string) (state string, ok bool) {
	if primaryCompletePattern.MatchString(line) {
		return "PRIMARY", true
	}
	if m := transitionPattern.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}
