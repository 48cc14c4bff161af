package app

import (
	"github.com/coreos/go-systemd/v22/daemon"

	logx "shakethefrog/pkg/logx"
)

// sdNotify sends a state to systemd when running under a notify unit. It is
// a no-op elsewhere.
func sdNotify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}
