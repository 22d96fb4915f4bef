//go:build linux

package supervisor

import "syscall"

// deathSigAttr arranges for the child to receive SIGKILL if this
// process dies before it does, functioning as the sidecar reaper's
// primary safety net: even if the in-process watcher goroutine never
// runs, the kernel itself cleans up the orphan.
func deathSigAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL, Setpgid: true}
}
