package domain

import "errors"

var (
	// ErrSubmissionNotFound is returned when a session code matches no submission.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSuggestionNotFound indicates the suggestion id is unknown.
	ErrSuggestionNotFound = errors.New("suggestion not found")
	// ErrQuestionNotFound indicates a referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrProfileNotFound indicates the caller has no profile record.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrAlreadyProcessed is returned when a suggestion is no longer pending.
	ErrAlreadyProcessed = errors.New("suggestion already processed")
	// ErrPermissionDenied is returned when a non-admin calls a review operation.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrCodeSpaceExhausted is returned when no free session code can be found.
	ErrCodeSpaceExhausted = errors.New("session code space exhausted")
	// ErrDanglingEvaluationItem indicates a payload references an unknown item.
	ErrDanglingEvaluationItem = errors.New("unknown evaluation item reference")
)

// ValidationError reports which required questions of a step are unanswered.
type ValidationError struct {
	Step    int
	Missing []string
}

func (e *ValidationError) Error() string {
	return "required answers missing"
}
