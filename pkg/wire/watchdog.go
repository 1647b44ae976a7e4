package wire

import "time"

// ActuatorTimeout is how long the board holds the actuator on without a
// fresh A line.
const ActuatorTimeout = time.Second

// Watchdog gates the actuator on the board. The output stays on only while
// the host keeps sending A,1 and the handle or the manual button is active.
// Once dropped it stays off until the next A,1.
type Watchdog struct {
	// Timeout <= 0 disables the timeout.
	Timeout time.Duration

	on   bool
	last time.Time
}

// Command records an A line received at now.
func (w *Watchdog) Command(on bool, now time.Time) {
	w.on = on
	w.last = now
}

// Output returns the level to drive at now.
func (w *Watchdog) Output(now time.Time, handle, manual bool) bool {
	if !w.on {
		return false
	}
	if w.Timeout > 0 && now.Sub(w.last) > w.Timeout {
		w.on = false
	}
	if !handle && !manual {
		w.on = false
	}
	return w.on
}
