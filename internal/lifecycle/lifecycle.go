package lifecycle

import "sync/atomic"

var (
	ready        atomic.Bool
	shuttingDown atomic.Bool
)

// SetReady marks the initial dashboard load as done. Until then the health
// handler reports starting.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady returns true once the process has finished starting.
func IsReady() bool {
	return ready.Load()
}

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// State names the lifecycle phase: shutting-down wins over starting.
func State() string {
	switch {
	case IsShuttingDown():
		return "shutting-down"
	case !IsReady():
		return "starting"
	}
	return "ready"
}
