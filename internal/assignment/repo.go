package assignment

import (
	"context"

	"github.com/brightclass/brightclass-lms/internal/results"
)

// Progress is one autosave frame from the client. Answers replace the stored
// selection per question id; TimeRemainingSec is advisory display state.
type Progress struct {
	Answers          AnswerMap `json:"answers"`
	CurrentQuestion  int       `json:"current_question"`
	TimeRemainingSec int       `json:"time_remaining_sec"`
}

// AttemptListOpts filters teacher-side attempt listings.
type AttemptListOpts struct {
	AssignmentID string
	StudentID    string
	Status       string
	Limit        int
	Offset       int
}

// Store is the persistence boundary of the attempt engine. Implementations
// own the attempt state machine: expired in_progress attempts are finalized
// lazily on any read that touches them, so callers always observe a
// consistent status.
type Store interface {
	// PutAssignment validates and upserts a published assignment definition.
	PutAssignment(ctx context.Context, a *Assignment) error
	// GetAssignment returns the student-safe view (answer keys stripped).
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	// GetAssignmentAdmin returns the full definition including answer keys.
	GetAssignmentAdmin(ctx context.Context, id string) (*Assignment, error)

	// CanAttempt evaluates eligibility without changing state beyond lazy
	// finalization of expired attempts.
	CanAttempt(ctx context.Context, assignmentID, studentID string) (Eligibility, error)
	// StartAttempt creates a new in_progress attempt, or resumes the
	// student's existing active one.
	StartAttempt(ctx context.Context, assignmentID, studentID string) (*StartedAttempt, error)
	// SaveProgress merges an autosave frame into an active attempt.
	SaveProgress(ctx context.Context, attemptID, studentID string, p Progress) (*Attempt, error)
	// Submit finalizes an attempt, grades it and returns the submission.
	// Final answers, if non-nil, are merged over the saved progress first.
	Submit(ctx context.Context, attemptID, studentID string, final AnswerMap) (*Submission, error)
	// AbandonAttempt moves an active attempt to abandoned without grading.
	AbandonAttempt(ctx context.Context, attemptID, studentID string) (*Attempt, error)

	GetAttempt(ctx context.Context, attemptID, studentID string) (*Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	GetSubmission(ctx context.Context, attemptID string) (*Submission, error)
	// History lists a student's graded submissions for one assignment,
	// oldest first.
	History(ctx context.Context, assignmentID, studentID string) ([]Submission, error)
	// BestResult returns the aggregated best-attempt summary.
	BestResult(ctx context.Context, assignmentID, studentID string) (results.Result, error)
}
