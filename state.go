package accounts

// AccountState is the lifecycle position of an account as seen by the
// Coordinator. Suspension and deletion are profile attributes, not states.
type AccountState string

const (
	AccountStateNonExistent AccountState = "non_existent"
	AccountStateRegistering AccountState = "registering"
	AccountStateProvisioned AccountState = "provisioned"
	// AccountStateDangling means the identity exists without a profile
	// because compensation failed.
	AccountStateDangling AccountState = "dangling"
)

var accountTransitions = map[AccountState][]AccountState{
	AccountStateNonExistent: {AccountStateRegistering},
	AccountStateRegistering: {AccountStateProvisioned, AccountStateNonExistent, AccountStateDangling},
	AccountStateProvisioned: {AccountStateProvisioned},
}

// CanTransition reports whether the Coordinator may move from one state to another.
func CanTransition(from, to AccountState) bool {
	for _, next := range accountTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition returns to, logging moves outside the lifecycle graph.
func (c *Coordinator) transition(identityID string, from, to AccountState) AccountState {
	if !CanTransition(from, to) {
		c.logger.Error("invalid account state transition",
			"identity_id", identityID,
			"from", string(from),
			"to", string(to),
		)
	}
	return to
}
