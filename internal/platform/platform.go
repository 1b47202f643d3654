// Package platform supplies the host facility corevm.Platform asks for
// (monotonic time, stack sizing, abort delivery, thread identity) plus a
// goroutine-pool Scheduler, built on the same goroutine-per-process
// style (Block>>fork, Process>>wait) but generalized from ad hoc
// `go func(){...}()` forking to a bounded worker pool guarded by
// golang.org/x/sync/semaphore.
package platform

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/corevm/internal/corevm"
	"github.com/chazu/corevm/internal/logging"
)

var platLog = logging.Named("corevm.platform")

// HostPlatform is the default corevm.Platform implementation: real
// monotonic time, a configurable stack ceiling, and abort delivery that
// either panics immediately or flags a pending abort a scheduler checks
// at its next safepoint.
type HostPlatform struct {
	maxStackWords int
	nextThreadID  atomic.Uint64

	mu           sync.Mutex
	scheduledMsg string
	hasScheduled bool
}

// NewHostPlatform returns a HostPlatform whose coroutine stacks may grow
// up to maxStackWords words before HandleStackOverflow reports
// StackOverflow.
func NewHostPlatform(maxStackWords int) *HostPlatform {
	return &HostPlatform{maxStackWords: maxStackWords}
}

func (h *HostPlatform) GetMicroseconds() int64 { return time.Now().UnixMicro() }

func (h *HostPlatform) MaxStackSizeInWords() int { return h.maxStackWords }

// ImmediateAbort logs the fatal message and panics, matching §7's
// "assertion failure -> immediate abort."
func (h *HostPlatform) ImmediateAbort(reason string) {
	platLog.Error(reason)
	panic(reason)
}

// ScheduleAbort records reason for delivery at the next safepoint rather
// than panicking on the spot (§7's "expectation failure -> scheduled
// abort at next safepoint"). DrainScheduledAbort is how a scheduler's
// safepoint loop picks it up.
func (h *HostPlatform) ScheduleAbort(reason string) {
	h.mu.Lock()
	h.scheduledMsg = reason
	h.hasScheduled = true
	h.mu.Unlock()
	platLog.Warning(reason)
}

// DrainScheduledAbort reports and clears any abort scheduled by
// ScheduleAbort, or ("", false) if none is pending.
func (h *HostPlatform) DrainScheduledAbort() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.hasScheduled {
		return "", false
	}
	msg := h.scheduledMsg
	h.scheduledMsg = ""
	h.hasScheduled = false
	return msg, true
}

// ThreadID returns a fresh identifier on every call; two calls never
// return the same value, even from the same goroutine. This simulation
// runs every process on a goroutine rather than a pinned OS thread, so the
// value is not read off the OS and is not stable per calling thread; the
// scheduler's per-worker identity is ThreadState.ID.
func (h *HostPlatform) ThreadID() uint64 {
	return h.nextThreadID.Add(1)
}

var _ corevm.Platform = (*HostPlatform)(nil)
