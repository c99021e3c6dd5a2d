package workflows

// StateMachine enforces document and signing-attempt state transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewDocumentLifecycle returns the lifecycle of a signable document.
// Signing is terminal: a signed document never transitions again.
func NewDocumentLifecycle() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"unsigned": {"signed"},
			"signed":   {},
		},
	}
}

// NewSigningAttempt returns the progression of a single signing attempt.
func NewSigningAttempt() *StateMachine {
	return &StateMachine{
		allowedTransitions: map[string][]string{
			"REQUESTED":            {"CERTIFICATE_RESOLVED", "FAILED"},
			"CERTIFICATE_RESOLVED": {"HASHED", "FAILED"},
			"HASHED":               {"SIGNED", "FAILED"},
			"SIGNED":               {},
			"FAILED":               {},
		},
	}
}

// CanTransition checks if a state transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns the allowed next states for a given state
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}
