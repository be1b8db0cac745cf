package assignment

import "errors"

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrSubmissionNotFound = errors.New("submission not found")

	// ErrAttemptNotAllowed: eligibility failed (limit reached, assignment
	// closed, outside active window). The wrapped message carries the reason.
	ErrAttemptNotAllowed = errors.New("attempt not allowed")

	// ErrAttemptNotActive: operation against a terminal attempt.
	ErrAttemptNotActive = errors.New("attempt not active")

	// ErrAttemptAlreadySubmitted: lost a submit race. Clients treat it like
	// ErrAttemptNotActive; the server logs it distinctly.
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

	// ErrQuestionBankInconsistent: the assignment's stored question set fails
	// integrity checks. Indicates authoring corruption; logged for operators.
	ErrQuestionBankInconsistent = errors.New("question bank inconsistent")

	// ErrMalformedAnswer: answer payload does not match the question's
	// declared type or references undeclared options/questions.
	ErrMalformedAnswer = errors.New("malformed answer")

	// ErrStorageUnavailable wraps transient database failures so callers never
	// see raw driver errors. Reads may be retried; startAttempt/submit must
	// re-check state first.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
