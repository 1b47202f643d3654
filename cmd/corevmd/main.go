// corevmd is a small host binary that wires Platform, Scheduler, Program,
// and Process together and runs a scripted demo workload: spawn a handful
// of processes against one shared Program, link them to each other, kill
// one, and let its linked siblings observe the resulting death signals.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chazu/corevm/internal/bytecode"
	"github.com/chazu/corevm/internal/config"
	"github.com/chazu/corevm/internal/corevm"
	"github.com/chazu/corevm/internal/logging"
	"github.com/chazu/corevm/internal/platform"
)

var log = logging.Named("corevmd")

var (
	confPath   = flag.String("config", "", "path to a TOML flags file (spec §6)")
	maxWorkers = flag.Int64("max-workers", 4, "maximum concurrently running processes")
	stackWords = flag.Int("stack-words", 1<<16, "maximum coroutine stack size, in words")
)

func main() {
	flags, xargs := splitArgs(os.Args[1:])
	flag.CommandLine.Parse(flags)

	cfg := config.Default()
	if *confPath != "" {
		loaded, err := config.Load(*confPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "corevmd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	for _, arg := range xargs {
		if err := cfg.ApplyArg(arg); err != nil {
			fmt.Fprintf(os.Stderr, "corevmd: %v\n", err)
			os.Exit(1)
		}
	}
	if cfg.PrintFlags {
		fmt.Printf("%+v\n", cfg)
	}

	host := platform.NewHostPlatform(*stackWords)

	program := corevm.NewProgram(1 << 16)
	objectClass, err := program.SharedHeap().CreateClass(&corevm.Class{Name: "Object", NumSlots: 0})
	if err != nil {
		log.Error("failed to create Object class")
		os.Exit(1)
	}
	entry, err := program.SharedHeap().CreateFunction(&corevm.Function{
		Bytecode: []byte{byte(bytecode.ReturnTop)},
		Arity:    0,
	})
	if err != nil {
		log.Error("failed to create entry function")
		os.Exit(1)
	}
	program.Initialize([]*corevm.Class{objectClass}, entry, 0)

	var sched *platform.WorkerScheduler
	sched = platform.NewWorkerScheduler(*maxWorkers, host, func(p *corevm.Process, thread *platform.ThreadState) {
		runDemoProcess(p, thread)
	})
	sched.SetPauseHandler(func() {
		log.Info("shared heap pause: no live processes to walk in this demo")
	})

	const numWorkers = 3
	procs := make([]*corevm.Process, numWorkers)
	for i := range procs {
		p := corevm.NewProcess(program, host, corevm.ScavengingGC{}, 1<<12, 0)
		p.SetEventHandler(platform.LoggingEventHandler{})
		procs[i] = p
	}

	// Link every process to every other, Erlang-style, so each observes
	// the others' termination.
	for i, p := range procs {
		for j, other := range procs {
			if i == j {
				continue
			}
			p.Link(other.Handle())
		}
	}

	for _, p := range procs {
		sched.Enqueue(p)
	}

	// Give the scheduler's goroutines a moment to run the scripted
	// workload before the demo kills one process and waits again.
	time.Sleep(50 * time.Millisecond)

	procs[0].Cleanup(corevm.TerminationKilled)
	log.Info("process 0 killed; linked siblings should observe a death signal")

	time.Sleep(50 * time.Millisecond)

	for i, p := range procs[1:] {
		msg, failure := p.ProcessQueueGetMessage()
		if failure != nil {
			log.Warning(fmt.Sprintf("process %d: mailbox empty", i+1))
			continue
		}
		if msg.IsHeapObject() {
			log.Info(fmt.Sprintf("process %d received a death signal instance", i+1))
		}
	}

	sched.CollectSharedGarbage()
}

// runDemoProcess drives one process through a trivial allocate/collect
// cycle so the worker pool has something to do besides sit idle.
func runDemoProcess(p *corevm.Process, thread *platform.ThreadState) {
	heap := p.Heap()
	for i := 0; i < 8; i++ {
		if _, failure := heap.CreateArray(4); failure != nil {
			p.CollectMutableGarbage()
			if _, failure := heap.CreateArray(4); failure != nil {
				log.Error("allocation failed even after a collection")
				return
			}
		}
	}
}

// splitArgs separates stdlib flag.FlagSet arguments from the runtime's own
// `-Xname[=value]` flags (spec §6), since flag.Parse has no notion of the
// latter's syntax.
func splitArgs(args []string) (flagArgs, xArgs []string) {
	for _, a := range args {
		if strings.HasPrefix(a, "-X") {
			xArgs = append(xArgs, a)
			continue
		}
		flagArgs = append(flagArgs, a)
	}
	return flagArgs, xArgs
}
