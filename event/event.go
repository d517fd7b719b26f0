package event

const (
	Error Type = iota
	GateInstalled
	GateUninstalled
	SignerRotated
	ExecutionVerified
	VerificationBypassed
	ExecutorInstalled
	ExecutorUninstalled
	SettlementExecuted
)

type (
	Event struct {
		EventType Type
		Content   any
	}

	Type int

	Handler func(e *Event)
)

// NopHandler discards every event, used when the caller does not wire an
// event sink.
func NopHandler(*Event) {}
