package upload

// Phase is a step of the upload lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequestingSlot
	PhaseTransferring
	PhaseServerProcessing
	PhaseCompleted
	PhaseFailed
	PhaseDemoFallback
)

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseRequestingSlot:   "requesting_transfer_slot",
	PhaseTransferring:     "transferring_payload",
	PhaseServerProcessing: "server_processing",
	PhaseCompleted:        "completed",
	PhaseFailed:           "failed",
	PhaseDemoFallback:     "demo_fallback",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Busy reports whether work for the current task is in flight.
func (p Phase) Busy() bool {
	switch p {
	case PhaseRequestingSlot, PhaseTransferring, PhaseServerProcessing, PhaseDemoFallback:
		return true
	}
	return false
}
