package model

// RunState is the WES run lifecycle state reported by a remote service.
type RunState string

const (
	RunStateUnknown       RunState = "UNKNOWN"
	RunStateQueued        RunState = "QUEUED"
	RunStateInitializing  RunState = "INITIALIZING"
	RunStateRunning       RunState = "RUNNING"
	RunStatePaused        RunState = "PAUSED"
	RunStateComplete      RunState = "COMPLETE"
	RunStateExecutorError RunState = "EXECUTOR_ERROR"
	RunStateSystemError   RunState = "SYSTEM_ERROR"
	RunStateCanceled      RunState = "CANCELED"
	RunStateCanceling     RunState = "CANCELING"
)

// AllRunStates lists every run state in lifecycle order.
var AllRunStates = []RunState{
	RunStateUnknown,
	RunStateQueued,
	RunStateInitializing,
	RunStateRunning,
	RunStatePaused,
	RunStateComplete,
	RunStateExecutorError,
	RunStateSystemError,
	RunStateCanceled,
	RunStateCanceling,
}

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// Valid reports whether s is one of the WES states.
func (s RunState) Valid() bool {
	for _, known := range AllRunStates {
		if s == known {
			return true
		}
	}
	return false
}

// Normalize maps empty or unrecognised values to UNKNOWN.
func (s RunState) Normalize() RunState {
	if s.Valid() {
		return s
	}
	return RunStateUnknown
}

// IsTerminal returns true if the run is in a final state.
func (s RunState) IsTerminal() bool {
	switch s {
	case RunStateComplete, RunStateExecutorError, RunStateSystemError, RunStateCanceled:
		return true
	}
	return false
}

// IsCancelable returns true if a cancel request may be sent for a run in this state.
func (s RunState) IsCancelable() bool {
	switch s {
	case RunStateQueued, RunStateInitializing, RunStateRunning, RunStatePaused:
		return true
	}
	return false
}

// Color returns the display colour used by console front ends.
func (s RunState) Color() string {
	switch s {
	case RunStateQueued, RunStateInitializing, RunStatePaused:
		return ColorLightBlue
	case RunStateRunning:
		return ColorIndigo
	case RunStateComplete:
		return ColorGreen
	case RunStateExecutorError, RunStateSystemError:
		return ColorRed
	case RunStateCanceled, RunStateCanceling:
		return ColorAmber
	}
	return ColorGrey
}

// ServiceState is the reachability of a registered service, derived by polling.
type ServiceState string

const (
	ServiceStateAvailable  ServiceState = "Available"
	ServiceStateDisconnect ServiceState = "Disconnect"
	ServiceStateUnknown    ServiceState = "Unknown"
)

// String returns the string representation of the service state.
func (s ServiceState) String() string {
	return string(s)
}

// Color returns the display colour used by console front ends.
func (s ServiceState) Color() string {
	switch s {
	case ServiceStateAvailable:
		return ColorGreen
	case ServiceStateDisconnect:
		return ColorRed
	}
	return ColorGrey
}

// Material palette (darken-1) shades shared by every state colour.
const (
	ColorGrey      = "#757575"
	ColorLightBlue = "#039BE5"
	ColorIndigo    = "#3949AB"
	ColorGreen     = "#43A047"
	ColorRed       = "#E53935"
	ColorAmber     = "#FFB300"
)
