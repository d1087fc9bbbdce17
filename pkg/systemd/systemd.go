// Package systemd reports service state to systemd via sd_notify.
// Outside a systemd unit every call is a no-op.
package systemd

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready tells systemd that startup finished.
func Ready() (bool, error) { return notify(daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown began.
func Stopping() (bool, error) { return notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func Status(format string, args ...any) (bool, error) {
	return notify("STATUS=" + fmt.Sprintf(format, args...))
}

func notify(state string) (bool, error) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		return false, fmt.Errorf("sd_notify %q: %w", state, err)
	}
	return sent, nil
}
