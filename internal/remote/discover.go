package remote

import (
	"errors"
	"time"

	"github.com/taote/taote/internal/statedb"
)

// ErrNoInstance is returned when no live instance advertises a control
// address.
var ErrNoInstance = errors.New("remote: no running taote instance with remote control enabled")

// Discover returns the control address of the most recently started live
// instance. Instances whose heartbeat is older than timeout are ignored.
func Discover(db *statedb.StateDB, timeout time.Duration) (string, int, error) {
	rows, err := db.AliveInstances(timeout)
	if err != nil {
		return "", 0, err
	}
	for _, r := range rows {
		if r.RemoteAddr != "" {
			return r.RemoteAddr, r.PID, nil
		}
	}
	return "", 0, ErrNoInstance
}
