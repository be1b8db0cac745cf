package assignment_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	"github.com/brightclass/brightclass-lms/internal/db"
	"github.com/brightclass/brightclass-lms/internal/grading"
	"github.com/brightclass/brightclass-lms/internal/results"
	syncx "github.com/brightclass/brightclass-lms/internal/sync"
)

// fake clock so deadlines can be crossed without sleeping
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T) (*assignment.SQLStore, *clock, *syncx.Recorder) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	rec := syncx.NewRecorder(dbh, "test-site", clk.Now)
	st := assignment.NewSQLStore(dbh, grading.NewExactMatchGrader(), results.NewAggregator(), rec, clk.Now)
	return st, clk, rec
}

func opts(labels ...string) []assignment.Option {
	out := make([]assignment.Option, len(labels))
	for i, l := range labels {
		out[i] = assignment.Option{Label: l, Text: "option " + l}
	}
	return out
}

func fractionsQuiz() *assignment.Assignment {
	return &assignment.Assignment{
		ID:                     "hw-1",
		Title:                  "Fractions quiz",
		TotalQuestions:         3,
		TotalMarks:             10,
		PassingMarks:           5,
		TimeLimitSec:           600,
		MaxAttempts:            2,
		Active:                 true,
		ShowResultsImmediately: true,
		AllowReview:            true,
		Questions: []assignment.Question{
			{ID: "q1", Type: assignment.QuestionSingle, Prompt: "1/2 + 1/2 = ?",
				Options: opts("A", "B", "C", "D"), CorrectAnswers: []string{"B"}, Marks: 2, Position: 1},
			{ID: "q2", Type: assignment.QuestionMultiple, Prompt: "Which equal 1/2?",
				Options: opts("A", "B", "C", "D"), CorrectAnswers: []string{"A", "C"}, Marks: 3, Position: 2},
			{ID: "q3", Type: assignment.QuestionSingle, Prompt: "3/4 - 1/4 = ?",
				Options: opts("A", "B"), CorrectAnswers: []string{"A"}, Marks: 5, Position: 3},
		},
	}
}

func seed(t *testing.T, st *assignment.SQLStore) *assignment.Assignment {
	t.Helper()
	a := fractionsQuiz()
	if err := st.PutAssignment(context.Background(), a); err != nil {
		t.Fatalf("put assignment: %v", err)
	}
	return a
}

func TestHappyPath(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	el, err := st.CanAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("canAttempt: %v", err)
	}
	if !el.CanAttempt || el.AttemptsUsed != 0 || el.MaxAttempts != 2 {
		t.Fatalf("eligibility: %+v", el)
	}

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Attempt.Status != assignment.AttemptInProgress {
		t.Fatalf("status = %s", started.Attempt.Status)
	}
	if started.Attempt.Deadline != started.Attempt.StartedAt+600 {
		t.Fatalf("deadline = started+%d", started.Attempt.Deadline-started.Attempt.StartedAt)
	}
	for _, q := range started.Questions {
		if q.CorrectAnswers != nil {
			t.Fatalf("question %s leaked answer key to student", q.ID)
		}
	}

	att, err := st.SaveProgress(ctx, started.Attempt.ID, "stu-1", assignment.Progress{
		Answers:          assignment.AnswerMap{"q1": assignment.Single("B"), "q2": assignment.Multi("A", "C")},
		CurrentQuestion:  2,
		TimeRemainingSec: 550,
	})
	if err != nil {
		t.Fatalf("save progress: %v", err)
	}
	if len(att.Answers) != 2 || att.CurrentQuestion != 2 {
		t.Fatalf("progress not applied: %+v", att)
	}

	sub, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q3": assignment.Single("A")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != 10 || sub.Percentage != 100 || !sub.Passed {
		t.Fatalf("score=%v pct=%v passed=%v", sub.Score, sub.Percentage, sub.Passed)
	}
	if sub.Status != assignment.AttemptCompleted {
		t.Fatalf("submission status = %s", sub.Status)
	}
	if len(sub.Review) != 3 {
		t.Fatalf("review rows = %d", len(sub.Review))
	}

	res, err := st.BestResult(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("best result: %v", err)
	}
	if res.BestScore != 10 || res.AttemptsUsed != 1 || !res.Passed {
		t.Fatalf("result: %+v", res)
	}
}

func TestUnansweredScoreZero(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// only q1 answered, wrongly
	sub, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q1": assignment.Single("A")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Score != 0 || sub.Passed {
		t.Fatalf("score=%v passed=%v, want zero and failed", sub.Score, sub.Passed)
	}
	if len(sub.Review) != 3 {
		t.Fatalf("unanswered questions must still appear in review, got %d rows", len(sub.Review))
	}
}

func TestTimeoutFinalizedLazily(t *testing.T) {
	st, clk, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.SaveProgress(ctx, started.Attempt.ID, "stu-1", assignment.Progress{
		Answers: assignment.AnswerMap{"q1": assignment.Single("B")},
	}); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	clk.advance(601 * time.Second)

	att, err := st.GetAttempt(ctx, started.Attempt.ID, "stu-1")
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if att.Status != assignment.AttemptTimedOut {
		t.Fatalf("status = %s, want timed_out", att.Status)
	}
	if att.TimeRemainingSec != 0 {
		t.Fatalf("time remaining = %d", att.TimeRemainingSec)
	}

	// graded from the saved progress
	sub, err := st.GetSubmission(ctx, started.Attempt.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.Score != 2 || sub.Status != assignment.AttemptTimedOut {
		t.Fatalf("score=%v status=%s", sub.Score, sub.Status)
	}
	if sub.TimeTakenSec != 600 {
		t.Fatalf("time taken clamped to limit, got %d", sub.TimeTakenSec)
	}

	// the consumed slot shows up in eligibility, and a fresh attempt is open
	el, err := st.CanAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("canAttempt: %v", err)
	}
	if el.AttemptsUsed != 1 || !el.CanAttempt || el.HasActiveAttempt {
		t.Fatalf("post-timeout eligibility: %+v", el)
	}
}

func TestLateSubmitGradedButTimedOut(t *testing.T) {
	st, clk, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.advance(700 * time.Second)

	sub, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q3": assignment.Single("A")})
	if err != nil {
		t.Fatalf("late submit must still grade: %v", err)
	}
	if sub.Status != assignment.AttemptTimedOut {
		t.Fatalf("status = %s, want timed_out", sub.Status)
	}
	if sub.Score != 5 {
		t.Fatalf("score = %v", sub.Score)
	}
}

func TestDoubleSubmitLosesDeterministically(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1", nil); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err = st.Submit(ctx, started.Attempt.ID, "stu-1", nil)
	if !errors.Is(err, assignment.ErrAttemptAlreadySubmitted) {
		t.Fatalf("second submit: got %v, want ErrAttemptAlreadySubmitted", err)
	}

	// exactly one submission row
	if _, err := st.GetSubmission(ctx, started.Attempt.ID); err != nil {
		t.Fatalf("get submission: %v", err)
	}
	res, err := st.BestResult(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("best result: %v", err)
	}
	if res.AttemptsUsed != 1 {
		t.Fatalf("attempts_used = %d, want 1", res.AttemptsUsed)
	}
}

func TestConcurrentSubmitSingleWinner(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
				assignment.AnswerMap{"q1": assignment.Single("B")})
			errs <- err
		}()
	}
	var ok, conflict int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case errors.Is(err, assignment.ErrAttemptAlreadySubmitted):
			conflict++
		default:
			t.Fatalf("unexpected submit error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("got %d winners and %d conflicts, want 1 and 1", ok, conflict)
	}
	res, err := st.BestResult(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("best result: %v", err)
	}
	if res.AttemptsUsed != 1 {
		t.Fatalf("exactly one result update expected, attempts_used = %d", res.AttemptsUsed)
	}
}

func TestProgressAfterSubmitRejected(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = st.SaveProgress(ctx, started.Attempt.ID, "stu-1", assignment.Progress{
		Answers: assignment.AnswerMap{"q1": assignment.Single("B")},
	})
	if !errors.Is(err, assignment.ErrAttemptAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAttemptAlreadySubmitted", err)
	}
}

func TestProgressIdempotent(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	frame := assignment.Progress{
		Answers:          assignment.AnswerMap{"q1": assignment.Single("B")},
		CurrentQuestion:  1,
		TimeRemainingSec: 500,
	}
	first, err := st.SaveProgress(ctx, started.Attempt.ID, "stu-1", frame)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := st.SaveProgress(ctx, started.Attempt.ID, "stu-1", frame)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(first.Answers) != len(second.Answers) || second.CurrentQuestion != 1 {
		t.Fatalf("replay changed state: %+v vs %+v", first, second)
	}
}

func TestMalformedSubmitKeepsAttemptActive(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// array shape on a single-choice question
	_, err = st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q1": assignment.Multi("A", "B")})
	if !errors.Is(err, assignment.ErrMalformedAnswer) {
		t.Fatalf("got %v, want ErrMalformedAnswer", err)
	}

	att, err := st.GetAttempt(ctx, started.Attempt.ID, "stu-1")
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if att.Status != assignment.AttemptInProgress {
		t.Fatalf("rejected submit must not consume the attempt, status = %s", att.Status)
	}
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q1": assignment.Single("B")}); err != nil {
		t.Fatalf("clean submit after rejection: %v", err)
	}
}

func TestAttemptLimit(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
		if err != nil {
			t.Fatalf("start %d: %v", i+1, err)
		}
		if started.Attempt.AttemptNumber != i+1 {
			t.Fatalf("attempt number = %d, want %d", started.Attempt.AttemptNumber, i+1)
		}
		if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1", nil); err != nil {
			t.Fatalf("submit %d: %v", i+1, err)
		}
	}

	el, err := st.CanAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("canAttempt: %v", err)
	}
	if el.CanAttempt || el.AttemptsUsed != 2 {
		t.Fatalf("limit not enforced: %+v", el)
	}
	if _, err := st.StartAttempt(ctx, "hw-1", "stu-1"); !errors.Is(err, assignment.ErrAttemptNotAllowed) {
		t.Fatalf("third start: got %v, want ErrAttemptNotAllowed", err)
	}

	// the rejected start must not leave a row behind
	list, err := st.ListAttempts(ctx, assignment.AttemptListOpts{AssignmentID: "hw-1", StudentID: "stu-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("attempt rows = %d, want 2", len(list))
	}
}

func TestAbandonConsumesSlot(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	att, err := st.AbandonAttempt(ctx, started.Attempt.ID, "stu-1")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if att.Status != assignment.AttemptAbandoned {
		t.Fatalf("status = %s", att.Status)
	}
	// no grading happens on abandon
	if _, err := st.GetSubmission(ctx, started.Attempt.ID); !errors.Is(err, assignment.ErrSubmissionNotFound) {
		t.Fatalf("abandoned attempt must have no submission, got %v", err)
	}

	el, err := st.CanAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("canAttempt: %v", err)
	}
	if el.AttemptsUsed != 1 {
		t.Fatalf("abandoned attempt must count, used = %d", el.AttemptsUsed)
	}
}

func TestStartResumesActiveAttempt(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	first, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if second.Attempt.ID != first.Attempt.ID {
		t.Fatalf("second start created a new attempt: %s vs %s", second.Attempt.ID, first.Attempt.ID)
	}
}

func TestBestOfAcrossAttempts(t *testing.T) {
	st, _, _ := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// first attempt: q3 correct only -> 5, passing
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q3": assignment.Single("A")}); err != nil {
		t.Fatalf("submit 1: %v", err)
	}

	started, err = st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start 2: %v", err)
	}
	// second attempt: q1 correct only -> 2, failing
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1",
		assignment.AnswerMap{"q1": assignment.Single("B")}); err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	res, err := st.BestResult(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("best result: %v", err)
	}
	if res.BestScore != 5 {
		t.Fatalf("best score = %v, want 5 from the first attempt", res.BestScore)
	}
	if res.AttemptsUsed != 2 {
		t.Fatalf("attempts_used = %d", res.AttemptsUsed)
	}
	if !res.Passed {
		t.Fatal("passed must stay true after a later failing attempt")
	}
}

func TestInactiveAndWindowedAssignments(t *testing.T) {
	st, clk, _ := newTestStore(t)
	ctx := context.Background()

	a := fractionsQuiz()
	a.Active = false
	if err := st.PutAssignment(ctx, a); err != nil {
		t.Fatalf("put: %v", err)
	}
	el, err := st.CanAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("canAttempt: %v", err)
	}
	if el.CanAttempt {
		t.Fatal("inactive assignment must not be attemptable")
	}

	// scheduled window
	a = fractionsQuiz()
	opens := clk.Now().Unix() + 3600
	a.StartsAt = &opens
	if err := st.PutAssignment(ctx, a); err != nil {
		t.Fatalf("put: %v", err)
	}
	if el, _ = st.CanAttempt(ctx, "hw-1", "stu-1"); el.CanAttempt {
		t.Fatal("not-yet-open assignment must not be attemptable")
	}
	clk.advance(2 * time.Hour)
	if el, _ = st.CanAttempt(ctx, "hw-1", "stu-1"); !el.CanAttempt {
		t.Fatalf("open assignment rejected: %+v", el)
	}
}

func TestEventLogRecordsLifecycle(t *testing.T) {
	st, _, rec := newTestStore(t)
	seed(t, st)
	ctx := context.Background()

	started, err := st.StartAttempt(ctx, "hw-1", "stu-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := st.Submit(ctx, started.Attempt.ID, "stu-1", nil); err != nil {
		t.Fatalf("submit: %v", err)
	}

	events, err := rec.Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != syncx.EventAttemptStarted || events[1].Type != syncx.EventAttemptSubmitted {
		t.Fatalf("event types: %s, %s", events[0].Type, events[1].Type)
	}
	if events[0].Key != started.Attempt.ID {
		t.Fatalf("event key = %s", events[0].Key)
	}
}
