package lockfile

// status is the result of checking a marker file against the current
// process and (optionally) a uuid we expect to own it.
type status int

const (
	// available: marker absent, unreadable-as-missing, or owned by a
	// pid that is no longer alive.
	available status = iota
	// availableInstance: marker owned by our pid and uuid matches the
	// supplied one. Only meaningful during unlock validation.
	availableInstance
	// lockedSelf: owned by our own pid, a same-process contention.
	lockedSelf
	// lockedDifferent: owned by a different, live pid.
	lockedDifferent
)

func (s status) String() string {
	switch s {
	case available:
		return "available"
	case availableInstance:
		return "availableInstance"
	case lockedSelf:
		return "lockedSelf"
	case lockedDifferent:
		return "lockedDifferent"
	default:
		return "unknown"
	}
}
