package result

// LockOutcome reports what ToggleLock did to a scope.
type LockOutcome string

const (
	Locked   LockOutcome = "locked"
	Unlocked LockOutcome = "unlocked"
	NoOp     LockOutcome = "noop"
)

// decideToggle locks everything when any record is unlocked and unlocks everything otherwise.
// An empty scope is left alone.
func decideToggle(total, unlocked int) LockOutcome {
	switch {
	case total == 0:
		return NoOp
	case unlocked > 0:
		return Locked
	default:
		return Unlocked
	}
}
