package assignment

import (
	"errors"
	"testing"
)

func validBankAssignment() *Assignment {
	return &Assignment{
		ID:             "hw-1",
		Title:          "Fractions",
		TotalQuestions: 2,
		TotalMarks:     5,
		TimeLimitSec:   600,
		MaxAttempts:    1,
		Active:         true,
		Questions: []Question{
			twoOptionQuestion("q1", QuestionSingle, "A"),
			twoOptionQuestion("q2", QuestionMultiple, "A", "B"),
		},
	}
}

func TestValidateBank(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(a *Assignment)
	}{
		{"count mismatch", func(a *Assignment) { a.TotalQuestions = 3 }},
		{"duplicate id", func(a *Assignment) { a.Questions[1].ID = "q1" }},
		{"bad type", func(a *Assignment) { a.Questions[0].Type = "essay" }},
		{"one option", func(a *Assignment) { a.Questions[0].Options = a.Questions[0].Options[:1] }},
		{"zero marks", func(a *Assignment) { a.Questions[0].Marks = 0 }},
		{"no correct answers", func(a *Assignment) { a.Questions[0].CorrectAnswers = nil }},
		{"two correct on single", func(a *Assignment) { a.Questions[0].CorrectAnswers = []string{"A", "B"} }},
		{"correct not declared", func(a *Assignment) { a.Questions[0].CorrectAnswers = []string{"Z"} }},
		{"duplicate label", func(a *Assignment) { a.Questions[0].Options[1].Label = "A" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := validBankAssignment()
			tc.mutate(a)
			if err := ValidateBank(a); !errors.Is(err, ErrQuestionBankInconsistent) {
				t.Fatalf("got %v, want ErrQuestionBankInconsistent", err)
			}
		})
	}

	if err := ValidateBank(validBankAssignment()); err != nil {
		t.Fatalf("valid bank rejected: %v", err)
	}
}

func TestStudentViewStripsKeysAndOrders(t *testing.T) {
	a := validBankAssignment()

	view := StudentView(a.Questions, []string{"q2", "q1"})
	if len(view) != 2 {
		t.Fatalf("got %d questions", len(view))
	}
	if view[0].ID != "q2" || view[1].ID != "q1" {
		t.Fatalf("order not applied: %s, %s", view[0].ID, view[1].ID)
	}
	for _, q := range view {
		if q.CorrectAnswers != nil {
			t.Fatalf("question %s leaked answer key", q.ID)
		}
	}
	// the source bank keeps its keys
	if a.Questions[0].CorrectAnswers == nil {
		t.Fatal("StudentView must not mutate the bank")
	}

	// unknown ids skipped, missing ids appended
	view = StudentView(a.Questions, []string{"ghost", "q2"})
	if len(view) != 2 || view[0].ID != "q2" || view[1].ID != "q1" {
		t.Fatalf("unexpected arrangement: %+v", view)
	}
}
