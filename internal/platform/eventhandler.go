package platform

import "github.com/chazu/corevm/internal/corevm"

// LoggingEventHandler is the default corevm.EventHandler: it simply logs
// which ports died during a Process.Cleanup, since this module has no
// real event-loop peer (epoll/kqueue integration) to notify the way a
// production host's platform layer would.
type LoggingEventHandler struct{}

func (LoggingEventHandler) ReceiverForPortsDied(ports []*corevm.Port) {
	for _, p := range ports {
		platLog.Debugf("port %s died with owning process", p.ID)
	}
}

var _ corevm.EventHandler = LoggingEventHandler{}
