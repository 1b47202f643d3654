// Package logging wires the core's structured logging through
// github.com/tliron/commonlog rather than fmt.Println/log.Printf.
package logging

import (
	"github.com/tliron/commonlog"

	// Registers the "simple" commonlog backend so a default sink exists
	// even when a host binary hasn't wired a fancier one, matching
	// server/lsp.go's blank import.
	_ "github.com/tliron/commonlog/simple"
)

// Logger is commonlog's own logger interface, re-exported so callers
// depend on this package rather than importing commonlog directly.
type Logger = commonlog.Logger

// Named returns a logger scoped to name, e.g. "corevm.gc" or
// "corevm.scheduler" — subsystems tag their own messages this way so a
// host binary can filter by scope.
func Named(name string) Logger {
	return commonlog.GetLogger(name)
}
