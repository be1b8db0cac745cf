package results

import (
	"context"
	"database/sql"
	"errors"
)

var ErrResultNotFound = errors.New("result not found")

// Result is the denormalized best-attempt summary per (student, assignment),
// read by dashboards and reports.
type Result struct {
	AssignmentID     string  `json:"assignment_id"`
	StudentID        string  `json:"student_id"`
	BestSubmissionID string  `json:"best_submission_id"`
	BestScore        float64 `json:"best_score"`
	BestPercentage   float64 `json:"best_percentage"`
	AttemptsUsed     int     `json:"attempts_used"`
	Passed           bool    `json:"passed"`
	CompletedAt      int64   `json:"completed_at"`
}

// Summary is the slice of a graded submission the aggregator needs.
type Summary struct {
	AssignmentID string
	StudentID    string
	SubmissionID string
	Score        float64
	Percentage   float64
	Passed       bool
	CompletedAt  int64
}

// Querier lets the aggregator run inside the caller's transaction (*sql.Tx)
// or directly against the pool (*sql.DB).
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Aggregator struct{}

func NewAggregator() *Aggregator { return &Aggregator{} }

// UpdateBest folds one graded submission into the (student, assignment)
// Result. attempts_used always increments; best fields are replaced when the
// new score is greater-or-equal (ties keep the newer completion date, since a
// later attempt represents more recent mastery); passed is a sticky OR.
func (a *Aggregator) UpdateBest(ctx context.Context, q Querier, s Summary) (Result, error) {
	cur := Result{AssignmentID: s.AssignmentID, StudentID: s.StudentID}
	err := q.QueryRowContext(ctx,
		`SELECT best_submission_id, best_score, best_percentage, attempts_used, passed, completed_at
		   FROM results WHERE assignment_id=$1 AND student_id=$2`,
		s.AssignmentID, s.StudentID,
	).Scan(&cur.BestSubmissionID, &cur.BestScore, &cur.BestPercentage, &cur.AttemptsUsed, &cur.Passed, &cur.CompletedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		cur = Result{
			AssignmentID:     s.AssignmentID,
			StudentID:        s.StudentID,
			BestSubmissionID: s.SubmissionID,
			BestScore:        s.Score,
			BestPercentage:   s.Percentage,
			AttemptsUsed:     1,
			Passed:           s.Passed,
			CompletedAt:      s.CompletedAt,
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO results (assignment_id, student_id, best_submission_id, best_score, best_percentage, attempts_used, passed, completed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			cur.AssignmentID, cur.StudentID, cur.BestSubmissionID, cur.BestScore, cur.BestPercentage,
			cur.AttemptsUsed, cur.Passed, cur.CompletedAt)
		return cur, err

	case err != nil:
		return Result{}, err
	}

	cur.AttemptsUsed++
	cur.Passed = cur.Passed || s.Passed
	if s.Score >= cur.BestScore {
		cur.BestSubmissionID = s.SubmissionID
		cur.BestScore = s.Score
		cur.BestPercentage = s.Percentage
		cur.CompletedAt = s.CompletedAt
	}
	_, err = q.ExecContext(ctx,
		`UPDATE results
		    SET best_submission_id=$1, best_score=$2, best_percentage=$3, attempts_used=$4, passed=$5, completed_at=$6
		  WHERE assignment_id=$7 AND student_id=$8`,
		cur.BestSubmissionID, cur.BestScore, cur.BestPercentage, cur.AttemptsUsed, cur.Passed, cur.CompletedAt,
		cur.AssignmentID, cur.StudentID)
	return cur, err
}

// Best returns the stored summary for one (student, assignment) pair.
func (a *Aggregator) Best(ctx context.Context, q Querier, studentID, assignmentID string) (Result, error) {
	r := Result{AssignmentID: assignmentID, StudentID: studentID}
	err := q.QueryRowContext(ctx,
		`SELECT best_submission_id, best_score, best_percentage, attempts_used, passed, completed_at
		   FROM results WHERE assignment_id=$1 AND student_id=$2`,
		assignmentID, studentID,
	).Scan(&r.BestSubmissionID, &r.BestScore, &r.BestPercentage, &r.AttemptsUsed, &r.Passed, &r.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return r, nil
}
