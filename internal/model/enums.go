package model

// PairingStatus is the closed set of pairing request states. Terminal
// states are immutable; repositories encode the legal transitions as SQL
// preconditions so an illegal write affects zero rows.
type PairingStatus string

const (
	PairingStatusInitialized PairingStatus = "initialized"
	PairingStatusPending     PairingStatus = "pending"
	PairingStatusCompleted   PairingStatus = "completed"
	PairingStatusExpired     PairingStatus = "expired"
	PairingStatusFailed      PairingStatus = "failed"
)

var pairingTransitions = map[PairingStatus][]PairingStatus{
	PairingStatusInitialized: {PairingStatusPending, PairingStatusExpired},
	PairingStatusPending:     {PairingStatusCompleted, PairingStatusExpired, PairingStatusFailed},
}

// Terminal reports whether the status permits no further transitions.
func (s PairingStatus) Terminal() bool {
	switch s {
	case PairingStatusCompleted, PairingStatusExpired, PairingStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s PairingStatus) CanTransitionTo(next PairingStatus) bool {
	for _, allowed := range pairingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type TwoFactorMethod string

const (
	TwoFactorMethodNone  TwoFactorMethod = "none"
	TwoFactorMethodEmail TwoFactorMethod = "email"
)
