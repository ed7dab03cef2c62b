package cmd

import (
	"github.com/systemd-swap/swapd/daemon/services/supervisor"
)

// Start runs the daemon until a shutdown signal arrives.
type Start struct{}

// Run resolves configuration and hands control to the supervisor. Any
// error it returns is a start-time fatal; the process exits nonzero with
// no partial state left behind.
func (s *Start) Run(env *Env) error {
	appCtx, err := BuildContext(env)
	if err != nil {
		return err
	}
	return supervisor.New(appCtx).Start()
}
