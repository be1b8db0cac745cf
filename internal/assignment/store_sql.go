package assignment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightclass/brightclass-lms/internal/grading"
	"github.com/brightclass/brightclass-lms/internal/results"
	syncx "github.com/brightclass/brightclass-lms/internal/sync"
)

// SQLStore implements Store over database/sql. The same SQL works on both
// sqlite (classroom servers) and postgres (central deployments); pgx accepts
// $N placeholders natively and sqlite accepts them as named parameters.
type SQLStore struct {
	db     *sql.DB
	grader grading.Grader
	agg    *results.Aggregator
	events *syncx.Recorder
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, grader grading.Grader, agg *results.Aggregator, events *syncx.Recorder, now func() time.Time) *SQLStore {
	if now == nil {
		now = time.Now
	}
	return &SQLStore{db: db, grader: grader, agg: agg, events: events, now: now}
}

// storeErr shields callers from raw driver errors. Sentinels pass through
// untouched so errors.Is keeps working across the boundary.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{
		ErrAssignmentNotFound, ErrAttemptNotFound, ErrSubmissionNotFound,
		ErrAttemptNotAllowed, ErrAttemptNotActive, ErrAttemptAlreadySubmitted,
		ErrQuestionBankInconsistent, ErrMalformedAnswer, results.ErrResultNotFound,
	} {
		if errors.Is(err, s) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}

// --- assignments -----------------------------------------------------------

func (s *SQLStore) PutAssignment(ctx context.Context, a *Assignment) error {
	if err := ValidateBank(a); err != nil {
		return err
	}
	qjson, err := json.Marshal(a.Questions)
	if err != nil {
		return storeErr(err)
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = s.now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assignments (id, content_part_id, title, total_questions, total_marks, passing_marks,
		  time_limit_sec, max_attempts, attempt_window_days, shuffle_questions, show_results_immediately,
		  allow_review, is_active, starts_at, ends_at, questions_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (id) DO UPDATE SET
		  content_part_id=$2, title=$3, total_questions=$4, total_marks=$5, passing_marks=$6,
		  time_limit_sec=$7, max_attempts=$8, attempt_window_days=$9, shuffle_questions=$10,
		  show_results_immediately=$11, allow_review=$12, is_active=$13, starts_at=$14, ends_at=$15,
		  questions_json=$16`,
		a.ID, a.ContentPartID, a.Title, a.TotalQuestions, a.TotalMarks, a.PassingMarks,
		a.TimeLimitSec, a.MaxAttempts, a.AttemptWindowDays, a.ShuffleQuestions, a.ShowResultsImmediately,
		a.AllowReview, a.Active, a.StartsAt, a.EndsAt, string(qjson), a.CreatedAt)
	return storeErr(err)
}

func (s *SQLStore) getAssignment(ctx context.Context, q results.Querier, id string) (*Assignment, error) {
	var a Assignment
	var qjson string
	err := q.QueryRowContext(ctx, `
		SELECT id, content_part_id, title, total_questions, total_marks, passing_marks,
		       time_limit_sec, max_attempts, attempt_window_days, shuffle_questions,
		       show_results_immediately, allow_review, is_active, starts_at, ends_at,
		       questions_json, created_at
		  FROM assignments WHERE id=$1`, id).Scan(
		&a.ID, &a.ContentPartID, &a.Title, &a.TotalQuestions, &a.TotalMarks, &a.PassingMarks,
		&a.TimeLimitSec, &a.MaxAttempts, &a.AttemptWindowDays, &a.ShuffleQuestions,
		&a.ShowResultsImmediately, &a.AllowReview, &a.Active, &a.StartsAt, &a.EndsAt,
		&qjson, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Questions, err = decodeQuestions(qjson)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLStore) GetAssignmentAdmin(ctx context.Context, id string) (*Assignment, error) {
	a, err := s.getAssignment(ctx, s.db, id)
	return a, storeErr(err)
}

func (s *SQLStore) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	a, err := s.getAssignment(ctx, s.db, id)
	if err != nil {
		return nil, storeErr(err)
	}
	a.Questions = StudentView(a.Questions, nil)
	return a, nil
}

// --- eligibility -----------------------------------------------------------

// eligibility evaluates whether studentID may start an attempt now. It runs
// inside the caller's transaction during StartAttempt so the decision and the
// insert see the same state.
func (s *SQLStore) eligibility(ctx context.Context, q results.Querier, a *Assignment, studentID string, now int64) (Eligibility, error) {
	el := Eligibility{MaxAttempts: a.MaxAttempts}

	var used int
	var firstStart sql.NullInt64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE status <> 'in_progress'), MIN(started_at)
		  FROM attempts WHERE assignment_id=$1 AND student_id=$2`,
		a.ID, studentID).Scan(&used, &firstStart)
	if err != nil {
		return el, err
	}
	el.AttemptsUsed = used

	var activeID string
	var activeDeadline int64
	err = q.QueryRowContext(ctx, `
		SELECT id, deadline FROM attempts
		 WHERE assignment_id=$1 AND student_id=$2 AND status='in_progress'`,
		a.ID, studentID).Scan(&activeID, &activeDeadline)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no active attempt
	case err != nil:
		return el, err
	case now >= activeDeadline:
		// expired but not yet finalized; the caller finalizes it and the
		// consumed slot shows up in AttemptsUsed
		el.AttemptsUsed++
	default:
		el.HasActiveAttempt = true
		el.AttemptID = activeID
	}

	switch {
	case !a.Active:
		el.Reason = "assignment is not active"
	case a.StartsAt != nil && now < *a.StartsAt:
		el.Reason = "assignment has not opened yet"
	case a.EndsAt != nil && now > *a.EndsAt:
		el.Reason = "assignment has closed"
	case a.AttemptWindowDays > 0 && firstStart.Valid &&
		now > firstStart.Int64+int64(a.AttemptWindowDays)*86400:
		el.Reason = "attempt window has expired"
	case el.HasActiveAttempt:
		el.CanAttempt = true // resume, not a new slot
		el.Reason = "an attempt is already in progress"
	case el.AttemptsUsed >= a.MaxAttempts:
		el.Reason = "attempt limit reached"
	default:
		el.CanAttempt = true
	}
	return el, nil
}

func (s *SQLStore) CanAttempt(ctx context.Context, assignmentID, studentID string) (Eligibility, error) {
	if err := s.finalizeExpired(ctx, assignmentID, studentID); err != nil {
		return Eligibility{}, storeErr(err)
	}
	a, err := s.getAssignment(ctx, s.db, assignmentID)
	if err != nil {
		return Eligibility{}, storeErr(err)
	}
	el, err := s.eligibility(ctx, s.db, a, studentID, s.now().Unix())
	return el, storeErr(err)
}

// --- attempt lifecycle -----------------------------------------------------

func scanAttempt(row interface{ Scan(...any) error }) (*Attempt, error) {
	var att Attempt
	var answers, order string
	err := row.Scan(&att.ID, &att.AssignmentID, &att.StudentID, &att.AttemptNumber,
		&att.Status, &att.StartedAt, &att.Deadline, &att.EndedAt,
		&att.TimeRemainingSec, &att.CurrentQuestion, &answers, &order)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &att.Answers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(order), &att.QuestionOrder); err != nil {
		return nil, err
	}
	return &att, nil
}

const attemptCols = `id, assignment_id, student_id, attempt_number, status, started_at,
	deadline, ended_at, time_remaining_sec, current_question, answers_json, question_order_json`

func (s *SQLStore) StartAttempt(ctx context.Context, assignmentID, studentID string) (*StartedAttempt, error) {
	if err := s.finalizeExpired(ctx, assignmentID, studentID); err != nil {
		return nil, storeErr(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	a, err := s.getAssignment(ctx, tx, assignmentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := ValidateBank(a); err != nil {
		log.Printf("question bank rejected: assignment=%s err=%v", a.ID, err)
		return nil, err
	}

	now := s.now().Unix()
	el, err := s.eligibility(ctx, tx, a, studentID, now)
	if err != nil {
		return nil, storeErr(err)
	}
	if el.HasActiveAttempt {
		// resume the running attempt instead of burning a slot
		att, err := scanAttempt(tx.QueryRowContext(ctx,
			`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, el.AttemptID))
		if err != nil {
			return nil, storeErr(err)
		}
		if err := tx.Commit(); err != nil {
			return nil, storeErr(err)
		}
		att.TimeRemainingSec = remaining(att.Deadline, now)
		return s.startedView(a, att), nil
	}
	if !el.CanAttempt {
		return nil, fmt.Errorf("%w: %s", ErrAttemptNotAllowed, el.Reason)
	}

	order := naturalOrder(a.Questions)
	if a.ShuffleQuestions {
		order = shuffledOrder(a.Questions)
	}
	orderJSON, _ := json.Marshal(order)

	att := &Attempt{
		ID:               uuid.NewString(),
		AssignmentID:     a.ID,
		StudentID:        studentID,
		AttemptNumber:    el.AttemptsUsed + 1,
		Status:           AttemptInProgress,
		StartedAt:        now,
		Deadline:         now + int64(a.TimeLimitSec),
		TimeRemainingSec: a.TimeLimitSec,
		Answers:          AnswerMap{},
		QuestionOrder:    order,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO attempts (id, assignment_id, student_id, attempt_number, status, started_at,
		  deadline, ended_at, time_remaining_sec, current_question, answers_json, question_order_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,$8,0,'{}',$9)`,
		att.ID, att.AssignmentID, att.StudentID, att.AttemptNumber, att.Status,
		att.StartedAt, att.Deadline, att.TimeRemainingSec, string(orderJSON))
	if isUniqueViolation(err) {
		// lost a racing start; the partial index keeps one active attempt
		return nil, fmt.Errorf("%w: an attempt is already in progress", ErrAttemptNotAllowed)
	}
	if err != nil {
		return nil, storeErr(err)
	}

	if s.events != nil {
		if err := s.events.Record(ctx, tx, syncx.EventAttemptStarted, att.ID, att); err != nil {
			return nil, storeErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return s.startedView(a, att), nil
}

func (s *SQLStore) startedView(a *Assignment, att *Attempt) *StartedAttempt {
	return &StartedAttempt{
		Attempt:        *att,
		Questions:      StudentView(a.Questions, att.QuestionOrder),
		TotalQuestions: a.TotalQuestions,
		TimeLimitSec:   a.TimeLimitSec,
	}
}

func remaining(deadline, now int64) int {
	if now >= deadline {
		return 0
	}
	return int(deadline - now)
}

func (s *SQLStore) SaveProgress(ctx context.Context, attemptID, studentID string, p Progress) (*Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	// touch the row first so concurrent writers serialize here
	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET current_question=$1 WHERE id=$2 AND student_id=$3 AND status='in_progress'`,
		p.CurrentQuestion, attemptID, studentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.explainInactive(ctx, attemptID, studentID)
	}

	att, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, attemptID))
	if err != nil {
		return nil, storeErr(err)
	}

	now := s.now().Unix()
	if now >= att.Deadline {
		// expired mid-save; drop the frame, finalize outside this tx
		tx.Rollback()
		if err := s.finalizeExpired(ctx, att.AssignmentID, studentID); err != nil {
			return nil, storeErr(err)
		}
		return nil, fmt.Errorf("%w: time limit elapsed", ErrAttemptNotActive)
	}

	a, err := s.getAssignment(ctx, tx, att.AssignmentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := ValidateAnswers(a.Questions, p.Answers); err != nil {
		return nil, err
	}

	if att.Answers == nil {
		att.Answers = AnswerMap{}
	}
	for id, ans := range p.Answers {
		att.Answers[id] = ans
	}
	att.CurrentQuestion = p.CurrentQuestion
	att.TimeRemainingSec = clampRemaining(p.TimeRemainingSec, att.Deadline, now)

	ansJSON, err := json.Marshal(att.Answers)
	if err != nil {
		return nil, storeErr(err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1, current_question=$2, time_remaining_sec=$3 WHERE id=$4`,
		string(ansJSON), att.CurrentQuestion, att.TimeRemainingSec, att.ID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return att, nil
}

// clampRemaining keeps the client-reported countdown inside what the server
// clock allows. The stored value is display state only.
func clampRemaining(reported int, deadline, now int64) int {
	max := remaining(deadline, now)
	if reported < 0 {
		return 0
	}
	if reported > max {
		return max
	}
	return reported
}

// explainInactive distinguishes "no such attempt" from "attempt finished"
// after a guarded UPDATE matched zero rows.
func (s *SQLStore) explainInactive(ctx context.Context, attemptID, studentID string) error {
	var status AttemptStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM attempts WHERE id=$1 AND student_id=$2`, attemptID, studentID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAttemptNotFound
	}
	if err != nil {
		return storeErr(err)
	}
	if status == AttemptCompleted || status == AttemptTimedOut {
		return fmt.Errorf("%w: attempt is %s", ErrAttemptAlreadySubmitted, status)
	}
	return fmt.Errorf("%w: attempt is %s", ErrAttemptNotActive, status)
}

// --- submit ----------------------------------------------------------------

func (s *SQLStore) Submit(ctx context.Context, attemptID, studentID string, final AnswerMap) (*Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	now := s.now().Unix()

	// The guarded transition is the first statement of the transaction. It
	// takes the write lock and makes double submits lose deterministically:
	// the loser matches zero rows. A late submit is still graded, but the
	// attempt is marked timed_out.
	res, err := tx.ExecContext(ctx, `
		UPDATE attempts
		   SET status = CASE WHEN $1 >= deadline THEN 'timed_out' ELSE 'completed' END,
		       ended_at = $1
		 WHERE id=$2 AND student_id=$3 AND status='in_progress'`,
		now, attemptID, studentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.explainInactive(ctx, attemptID, studentID)
	}

	att, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, attemptID))
	if err != nil {
		return nil, storeErr(err)
	}

	a, err := s.getAssignment(ctx, tx, att.AssignmentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if err := ValidateBank(a); err != nil {
		log.Printf("question bank rejected at submit: assignment=%s attempt=%s err=%v", a.ID, att.ID, err)
		return nil, err
	}

	if att.Answers == nil {
		att.Answers = AnswerMap{}
	}
	for id, ans := range final {
		att.Answers[id] = ans
	}
	// a malformed payload aborts the tx, which restores in_progress
	if err := ValidateAnswers(a.Questions, att.Answers); err != nil {
		return nil, err
	}

	sub, err := s.grade(ctx, a, att, now)
	if err != nil {
		return nil, err
	}

	ansJSON, _ := json.Marshal(sub.Answers)
	revJSON, _ := json.Marshal(sub.Review)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (id, attempt_id, assignment_id, student_id, attempt_number,
		  answers_json, review_json, score, total_marks, percentage, passed, time_taken_sec,
		  status, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		sub.ID, sub.AttemptID, sub.AssignmentID, sub.StudentID, sub.AttemptNumber,
		string(ansJSON), string(revJSON), sub.Score, sub.TotalMarks, sub.Percentage,
		sub.Passed, sub.TimeTakenSec, sub.Status, sub.SubmittedAt)
	if err != nil {
		return nil, storeErr(err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE attempts SET answers_json=$1, time_remaining_sec=0 WHERE id=$2`,
		string(ansJSON), att.ID)
	if err != nil {
		return nil, storeErr(err)
	}

	if _, err := s.agg.UpdateBest(ctx, tx, results.Summary{
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		SubmissionID: sub.ID,
		Score:        sub.Score,
		Percentage:   sub.Percentage,
		Passed:       sub.Passed,
		CompletedAt:  sub.SubmittedAt,
	}); err != nil {
		return nil, storeErr(err)
	}

	if s.events != nil {
		typ := syncx.EventAttemptSubmitted
		if sub.Status == AttemptTimedOut {
			typ = syncx.EventAttemptTimedOut
		}
		if err := s.events.Record(ctx, tx, typ, att.ID, sub); err != nil {
			return nil, storeErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return sub, nil
}

// grade scores every question in the bank against the attempt's answers.
// Unanswered questions score zero without error.
func (s *SQLStore) grade(ctx context.Context, a *Assignment, att *Attempt, now int64) (*Submission, error) {
	sub := &Submission{
		ID:            uuid.NewString(),
		AttemptID:     att.ID,
		AssignmentID:  a.ID,
		StudentID:     att.StudentID,
		AttemptNumber: att.AttemptNumber,
		Answers:       att.Answers,
		TotalMarks:    a.TotalMarks,
		Status:        att.Status,
		SubmittedAt:   now,
	}

	for _, q := range a.Questions {
		item := ReviewItem{
			QuestionID:     q.ID,
			CorrectAnswers: q.CorrectAnswers,
			MarksAvailable: q.Marks,
		}
		if ans, ok := att.Answers[q.ID]; ok {
			item.StudentAnswer = ans.Labels()
			out, err := s.grader.Grade(ctx, grading.Q{
				Type:           string(q.Type),
				Marks:          q.Marks,
				CorrectAnswers: q.CorrectAnswers,
			}, item.StudentAnswer)
			if err != nil {
				return nil, fmt.Errorf("%w: question %q: %v", ErrMalformedAnswer, q.ID, err)
			}
			item.Correct = out.Correct
			item.MarksObtained = out.MarksAwarded
			sub.Score += out.MarksAwarded
		}
		sub.Review = append(sub.Review, item)
	}

	if a.TotalMarks > 0 {
		sub.Percentage = sub.Score / a.TotalMarks * 100
	}
	sub.Passed = sub.Score >= a.PassingMarks

	taken := now - att.StartedAt
	if limit := int64(a.TimeLimitSec); taken > limit {
		taken = limit
	}
	sub.TimeTakenSec = int(taken)
	return sub, nil
}

// finalizeExpired grades and closes any in_progress attempt whose deadline
// has passed, using whatever progress was saved. Reads call this first so an
// expired attempt is never observed as active.
func (s *SQLStore) finalizeExpired(ctx context.Context, assignmentID, studentID string) error {
	now := s.now().Unix()
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM attempts
		 WHERE assignment_id=$1 AND student_id=$2 AND status='in_progress' AND deadline <= $3`,
		assignmentID, studentID, now)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := s.Submit(ctx, id, studentID, nil); err != nil {
			// a racing submit already closed it; nothing left to do
			if errors.Is(err, ErrAttemptAlreadySubmitted) || errors.Is(err, ErrAttemptNotActive) {
				continue
			}
			return err
		}
	}
	return nil
}

func (s *SQLStore) AbandonAttempt(ctx context.Context, attemptID, studentID string) (*Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeErr(err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	res, err := tx.ExecContext(ctx, `
		UPDATE attempts SET status='abandoned', ended_at=$1, time_remaining_sec=0
		 WHERE id=$2 AND student_id=$3 AND status='in_progress'`,
		now, attemptID, studentID)
	if err != nil {
		return nil, storeErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, s.explainInactive(ctx, attemptID, studentID)
	}

	att, err := scanAttempt(tx.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, attemptID))
	if err != nil {
		return nil, storeErr(err)
	}
	if s.events != nil {
		if err := s.events.Record(ctx, tx, syncx.EventAttemptAbandoned, att.ID, att); err != nil {
			return nil, storeErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, storeErr(err)
	}
	return att, nil
}

// --- reads -----------------------------------------------------------------

func (s *SQLStore) GetAttempt(ctx context.Context, attemptID, studentID string) (*Attempt, error) {
	att, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE id=$1 AND student_id=$2`, attemptID, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, storeErr(err)
	}

	now := s.now().Unix()
	if att.Status == AttemptInProgress && now >= att.Deadline {
		if err := s.finalizeExpired(ctx, att.AssignmentID, studentID); err != nil {
			return nil, storeErr(err)
		}
		att, err = scanAttempt(s.db.QueryRowContext(ctx,
			`SELECT `+attemptCols+` FROM attempts WHERE id=$1`, attemptID))
		if err != nil {
			return nil, storeErr(err)
		}
	}
	if att.Status == AttemptInProgress {
		att.TimeRemainingSec = remaining(att.Deadline, now)
	} else {
		att.TimeRemainingSec = 0
	}
	return att, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	where := []string{"1=1"}
	args := []any{}
	n := 0
	add := func(cond string, v any) {
		n++
		where = append(where, fmt.Sprintf(cond, n))
		args = append(args, v)
	}
	if opts.AssignmentID != "" {
		add("assignment_id=$%d", opts.AssignmentID)
	}
	if opts.StudentID != "" {
		add("student_id=$%d", opts.StudentID)
	}
	if opts.Status != "" {
		add("status=$%d", opts.Status)
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)

	query := fmt.Sprintf(`SELECT `+attemptCols+` FROM attempts WHERE %s
		ORDER BY started_at DESC, attempt_number DESC LIMIT $%d OFFSET $%d`,
		strings.Join(where, " AND "), n+1, n+2)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		att, err := scanAttempt(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, *att)
	}
	return out, storeErr(rows.Err())
}

const submissionCols = `id, attempt_id, assignment_id, student_id, attempt_number,
	answers_json, review_json, score, total_marks, percentage, passed, time_taken_sec,
	status, submitted_at`

func scanSubmission(row interface{ Scan(...any) error }) (*Submission, error) {
	var sub Submission
	var answers, review string
	err := row.Scan(&sub.ID, &sub.AttemptID, &sub.AssignmentID, &sub.StudentID, &sub.AttemptNumber,
		&answers, &review, &sub.Score, &sub.TotalMarks, &sub.Percentage, &sub.Passed,
		&sub.TimeTakenSec, &sub.Status, &sub.SubmittedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(review), &sub.Review); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *SQLStore) GetSubmission(ctx context.Context, attemptID string) (*Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionCols+` FROM submissions WHERE attempt_id=$1`, attemptID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	return sub, storeErr(err)
}

func (s *SQLStore) History(ctx context.Context, assignmentID, studentID string) ([]Submission, error) {
	if err := s.finalizeExpired(ctx, assignmentID, studentID); err != nil {
		return nil, storeErr(err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionCols+` FROM submissions
		  WHERE assignment_id=$1 AND student_id=$2 ORDER BY attempt_number`,
		assignmentID, studentID)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, *sub)
	}
	return out, storeErr(rows.Err())
}

func (s *SQLStore) BestResult(ctx context.Context, assignmentID, studentID string) (results.Result, error) {
	if err := s.finalizeExpired(ctx, assignmentID, studentID); err != nil {
		return results.Result{}, storeErr(err)
	}
	r, err := s.agg.Best(ctx, s.db, studentID, assignmentID)
	return r, storeErr(err)
}
