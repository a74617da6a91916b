package upload

// Action is something the user can do with a failed upload
type Action int

const (
	ActionRetry Action = iota
	ActionManualEntry
	ActionDiscard
)

func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionManualEntry:
		return "manual"
	case ActionDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds how often a failed scan may be resubmitted.
// Retries are user-triggered and immediate; there is no backoff.
type RetryPolicy struct {
	MaxRetries  int
	OnExhausted Action
}

// DefaultRetryPolicy allows one retry, then forces manual entry
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  1,
		OnExhausted: ActionManualEntry,
	}
}

// Allows reports whether another retry is permitted after retries attempts
func (p RetryPolicy) Allows(retries int) bool {
	return retries < p.MaxRetries
}

// Actions lists what the user may do with a failed item
func (p RetryPolicy) Actions(item Item) []Action {
	if item.State != StateFailed {
		return nil
	}
	if p.Allows(item.Retries) {
		return []Action{ActionRetry, ActionManualEntry, ActionDiscard}
	}
	if p.OnExhausted == ActionDiscard {
		return []Action{ActionDiscard}
	}
	return []Action{p.OnExhausted, ActionDiscard}
}
