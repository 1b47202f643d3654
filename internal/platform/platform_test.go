package platform

import (
	"testing"
	"time"

	"github.com/chazu/corevm/internal/corevm"
)

func TestHostPlatformThreadIDsAreUnique(t *testing.T) {
	h := NewHostPlatform(1 << 16)
	a := h.ThreadID()
	b := h.ThreadID()
	if a == b {
		t.Error("successive ThreadID calls should not collide")
	}
}

func TestHostPlatformScheduleAndDrainAbort(t *testing.T) {
	h := NewHostPlatform(1 << 16)

	if _, pending := h.DrainScheduledAbort(); pending {
		t.Fatal("a fresh HostPlatform should have no pending abort")
	}

	h.ScheduleAbort("expectation failure: heap invariant broken")
	msg, pending := h.DrainScheduledAbort()
	if !pending {
		t.Fatal("DrainScheduledAbort should report the scheduled abort")
	}
	if msg != "expectation failure: heap invariant broken" {
		t.Errorf("drained message = %q", msg)
	}

	if _, pending := h.DrainScheduledAbort(); pending {
		t.Error("DrainScheduledAbort should clear the pending abort after one read")
	}
}

func TestHostPlatformImmediateAbortPanics(t *testing.T) {
	h := NewHostPlatform(1 << 16)
	defer func() {
		if recover() == nil {
			t.Error("ImmediateAbort should panic")
		}
	}()
	h.ImmediateAbort("assertion failure")
}

// ---------------------------------------------------------------------------
// WorkerScheduler (§5)
// ---------------------------------------------------------------------------

func TestWorkerSchedulerRunsEnqueuedProcess(t *testing.T) {
	host := NewHostPlatform(1 << 16)
	ran := make(chan struct{}, 1)
	sched := NewWorkerScheduler(2, host, func(p *corevm.Process, thread *ThreadState) {
		ran <- struct{}{}
	})

	program := corevm.NewProgram(1 << 10)
	p := corevm.NewProcess(program, host, corevm.ScavengingGC{}, 1<<12, 0)
	sched.Enqueue(p)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("enqueued process was never dispatched to a worker")
	}
}

func TestWorkerSchedulerCollectSharedGarbageWaitsForIdle(t *testing.T) {
	host := NewHostPlatform(1 << 16)
	release := make(chan struct{})
	started := make(chan struct{})
	sched := NewWorkerScheduler(1, host, func(p *corevm.Process, thread *ThreadState) {
		close(started)
		<-release
	})

	program := corevm.NewProgram(1 << 10)
	p := corevm.NewProcess(program, host, corevm.ScavengingGC{}, 1<<12, 0)
	sched.Enqueue(p)
	<-started

	paused := make(chan struct{})
	sched.SetPauseHandler(func() { close(paused) })

	done := make(chan struct{})
	go func() {
		sched.CollectSharedGarbage()
		close(done)
	}()

	select {
	case <-paused:
		t.Fatal("pause handler fired before the running worker went idle")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CollectSharedGarbage never returned after the worker went idle")
	}
}

func TestWorkerSchedulerShutdownCancelsThreadContexts(t *testing.T) {
	host := NewHostPlatform(1 << 16)
	abandoned := make(chan struct{})
	sched := NewWorkerScheduler(1, host, func(p *corevm.Process, thread *ThreadState) {
		<-thread.Done()
		close(abandoned)
	})

	program := corevm.NewProgram(1 << 10)
	p := corevm.NewProcess(program, host, corevm.ScavengingGC{}, 1<<12, 0)
	sched.Enqueue(p)

	sched.Shutdown()

	select {
	case <-abandoned:
	case <-time.After(time.Second):
		t.Fatal("Shutdown should cancel every thread's context, releasing onRun callbacks blocked on Done()")
	}
}
