package corevm

import (
	"fmt"

	"github.com/chazu/corevm/internal/logging"
)

var errLog = logging.Named("corevm.errors")

// AbortKind distinguishes an assertion failure (programmer error inside
// the runtime itself, never recoverable) from an expectation failure
// (a recoverable-looking invariant break that is nonetheless fatal, but
// only needs to stop the world at the next safepoint rather than right
// now) — §7's Fatal kind split.
type AbortKind uint8

const (
	AssertionFailure AbortKind = iota
	ExpectationFailure
)

// Fatal reports a file:line-qualified fatal condition through the
// structured logger's error sink, then asks platform to abort — either
// immediately (AssertionFailure) or at the next safepoint
// (ExpectationFailure), per §7: "assertion failure -> immediate abort;
// expectation failure -> scheduled abort at next safepoint."
func Fatal(platform Platform, kind AbortKind, file string, line int, message string) {
	formatted := fmt.Sprintf("%s:%d: error: %s", file, line, message)
	errLog.Error(formatted)
	if platform == nil {
		return
	}
	switch kind {
	case AssertionFailure:
		platform.ImmediateAbort(formatted)
	case ExpectationFailure:
		platform.ScheduleAbort(formatted)
	}
}

// StoreErrno and RestoreErrno model the native-call errno save/restore
// pair listed in §6's external contract: a native that makes a foreign
// call stashes the process's last observed errno before the call and can
// restore it afterward, so an intervening GC-triggered native (invoked
// while retrying an allocation) cannot clobber the value the mutator
// still needs to inspect.
func (p *Process) StoreErrno(value int) { p.errno = value }

func (p *Process) RestoreErrno() int { return p.errno }
