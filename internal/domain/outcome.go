package domain

// Outcome is the terminal state of a processed signal.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered" // passed every gate; delivery was attempted
	OutcomeFiltered  Outcome = "filtered"  // failed the quality gate or had no new wallets
	OutcomeRejected  Outcome = "rejected"  // security verdict SCAM
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	return string(o)
}

// IsValid checks if the outcome is a known value.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeDelivered, OutcomeFiltered, OutcomeRejected:
		return true
	default:
		return false
	}
}

// SignalOutcome is the archived summary of one processed signal.
type SignalOutcome struct {
	CycleID          string
	SignalKey        string
	ChainID          string
	TokenAddress     string
	TokenSymbol      string
	Outcome          Outcome
	Reason           string
	EventTimeMs      int64
	PriceAtSignal    float64
	McapAtSignal     float64
	ParticipantCount int
	NewWallets       int
	RepeatWallets    int
	ScoredWallets    int
	MeanScore        float64
	SecurityStatus   SecurityStatus
	ProcessedAtMs    int64
}
