package api

import "fmt"

// ValidateAnswerTransition checks whether an answer status transition is
// valid. An empty "from" status represents the initial state before any
// status has been set: non-streaming answers are stored terminal right
// away, streaming answers start in_progress. Terminal states (completed,
// failed) do not allow outgoing transitions.
func ValidateAnswerTransition(from, to AnswerStatus) *APIError {
	valid := map[AnswerStatus][]AnswerStatus{
		"":                     {AnswerStatusInProgress, AnswerStatusCompleted, AnswerStatusFailed},
		AnswerStatusInProgress: {AnswerStatusCompleted, AnswerStatusFailed},
	}

	allowed, exists := valid[from]
	if !exists {
		return NewInvalidRequestError("status",
			fmt.Sprintf("invalid transition from %s to %s", from, to))
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return NewInvalidRequestError("status",
		fmt.Sprintf("invalid transition from %s to %s", from, to))
}
