package domain

import "strings"

var statusTransitions = map[string]map[string]struct{}{
	StatusPending: {
		StatusProcessing: {},
		StatusSuccess:    {},
		StatusFailed:     {},
	},
	StatusProcessing: {
		StatusSuccess: {},
		StatusFailed:  {},
	},
	StatusSuccess: {},
	StatusFailed:  {},
}

func normalizeStatus(status string) string {
	return strings.ToUpper(strings.TrimSpace(status))
}

// CanTransition reports whether a ledger entry may move from current to next.
// SUCCESS and FAILED are terminal; nothing ever downgrades out of PROCESSING.
func CanTransition(current, next string) bool {
	current = normalizeStatus(current)
	next = normalizeStatus(next)
	if current == next {
		return false
	}
	nextStates, ok := statusTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}
