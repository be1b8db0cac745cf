package assignment

type QuestionType string

const (
	QuestionSingle   QuestionType = "single"
	QuestionMultiple QuestionType = "multiple"
)

type Option struct {
	Label string `json:"label"` // "A".."E"
	Text  string `json:"text"`
}

type Question struct {
	ID             string       `json:"id" validate:"required"`
	Type           QuestionType `json:"type" validate:"required,oneof=single multiple"`
	Prompt         string       `json:"prompt" validate:"required"`
	Options        []Option     `json:"options" validate:"min=2,max=5"`
	CorrectAnswers []string     `json:"correct_answers,omitempty"` // stripped from student views
	Marks          float64      `json:"marks" validate:"gt=0"`
	Difficulty     string       `json:"difficulty,omitempty"`
	Position       int          `json:"position"`
}

// Assignment is immutable once published; the attempt engine only reads it.
type Assignment struct {
	ID                     string     `json:"id" validate:"required"`
	ContentPartID          string     `json:"content_part_id,omitempty"`
	Title                  string     `json:"title" validate:"required"`
	TotalQuestions         int        `json:"total_questions" validate:"gt=0"`
	TotalMarks             float64    `json:"total_marks" validate:"gt=0"`
	PassingMarks           float64    `json:"passing_marks" validate:"gte=0"`
	TimeLimitSec           int        `json:"time_limit_sec" validate:"gt=0"`
	MaxAttempts            int        `json:"max_attempts" validate:"gt=0"`
	AttemptWindowDays      int        `json:"attempt_window_days" validate:"gte=0"`
	ShuffleQuestions       bool       `json:"shuffle_questions"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
	AllowReview            bool       `json:"allow_review"`
	Active                 bool       `json:"is_active"`
	StartsAt               *int64     `json:"starts_at,omitempty"` // unix seconds
	EndsAt                 *int64     `json:"ends_at,omitempty"`
	Questions              []Question `json:"questions" validate:"required,dive"`
	CreatedAt              int64      `json:"created_at,omitempty"`
}

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// Terminal reports whether no further transition may leave the status.
func (s AttemptStatus) Terminal() bool { return s != AttemptInProgress }

// Attempt is one student's timed session against an assignment. The
// authoritative clock is Deadline (started_at + time_limit_sec, server time);
// TimeRemainingSec is whatever the client last reported and is display-only.
type Attempt struct {
	ID               string        `json:"id"`
	AssignmentID     string        `json:"assignment_id"`
	StudentID        string        `json:"student_id"`
	AttemptNumber    int           `json:"attempt_number"`
	Status           AttemptStatus `json:"status"`
	StartedAt        int64         `json:"started_at"`
	Deadline         int64         `json:"deadline"`
	EndedAt          *int64        `json:"ended_at,omitempty"`
	TimeRemainingSec int           `json:"time_remaining_sec"`
	CurrentQuestion  int           `json:"current_question"`
	Answers          AnswerMap     `json:"answers"`
	QuestionOrder    []string      `json:"question_order"` // presentation only; scoring keys by question id
}

type ReviewItem struct {
	QuestionID     string   `json:"question_id"`
	Correct        bool     `json:"correct"`
	StudentAnswer  []string `json:"student_answer"`
	CorrectAnswers []string `json:"correct_answers"`
	MarksObtained  float64  `json:"marks_obtained"`
	MarksAvailable float64  `json:"marks_available"`
}

// Submission is the immutable graded record of one finalized attempt.
type Submission struct {
	ID            string        `json:"id"`
	AttemptID     string        `json:"attempt_id"`
	AssignmentID  string        `json:"assignment_id"`
	StudentID     string        `json:"student_id"`
	AttemptNumber int           `json:"attempt_number"`
	Answers       AnswerMap     `json:"answers"`
	Review        []ReviewItem  `json:"review,omitempty"`
	Score         float64       `json:"score"`
	TotalMarks    float64       `json:"total_marks"`
	Percentage    float64       `json:"percentage"`
	Passed        bool          `json:"passed"`
	TimeTakenSec  int           `json:"time_taken_sec"`
	Status        AttemptStatus `json:"status"` // completed | timed_out
	SubmittedAt   int64         `json:"submitted_at"`
}

// Eligibility is the answer to "may this student start an attempt right now".
type Eligibility struct {
	CanAttempt       bool   `json:"can_attempt"`
	Reason           string `json:"reason,omitempty"`
	AttemptsUsed     int    `json:"attempts_used"`
	MaxAttempts      int    `json:"max_attempts"`
	HasActiveAttempt bool   `json:"has_active_attempt"`
	AttemptID        string `json:"attempt_id,omitempty"` // resumable attempt, if any
}

type StartedAttempt struct {
	Attempt        Attempt    `json:"attempt"`
	Questions      []Question `json:"questions"` // answer keys stripped
	TotalQuestions int        `json:"total_questions"`
	TimeLimitSec   int        `json:"time_limit_sec"`
}
