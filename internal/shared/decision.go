package shared

// Outcome classifies the result of a permission or admission check.
type Outcome int

const (
	// OutcomeAllowed means the check passed.
	OutcomeAllowed Outcome = iota
	// OutcomeDenied means the subject exists but the check failed.
	OutcomeDenied
	// OutcomeNotFound means the subject of the check does not exist. Callers
	// must be able to tell "doesn't exist" from "exists but not permitted".
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeDenied:
		return "denied"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Decision is a tagged check result carrying the denial reason when present.
type Decision struct {
	Outcome Outcome
	Reason  string
}

// Allow returns an allowed decision.
func Allow() Decision {
	return Decision{Outcome: OutcomeAllowed}
}

// Deny returns a denied decision with a human-readable reason.
func Deny(reason string) Decision {
	return Decision{Outcome: OutcomeDenied, Reason: reason}
}

// NotFound returns a not-found decision for the named subject.
func NotFound(subject string) Decision {
	return Decision{Outcome: OutcomeNotFound, Reason: subject + " not found"}
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}
