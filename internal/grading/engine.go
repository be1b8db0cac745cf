package grading

import (
	"context"
	"errors"
	"fmt"
)

// Q is a minimal view of a question needed for grading.
type Q struct {
	Type           string // "single" | "multiple"
	Marks          float64
	CorrectAnswers []string
}

// Outcome is the result of grading one question's selection.
type Outcome struct {
	Correct        bool
	MarksAwarded   float64
	MarksAvailable float64
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, selected []string) (Outcome, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, selected []string) (Outcome, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, selected []string) (Outcome, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Outcome{MarksAvailable: q.Marks}, fmt.Errorf("no strategy for question type %q", q.Type)
	}
	return s.Grade(ctx, q, selected)
}

// NewExactMatchGrader installs the built-in strategies. Both award full marks
// on an exact set match against the answer key and zero otherwise; there is
// no partial credit.
func NewExactMatchGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"single":   singleChoiceStrategy{},
			"multiple": multiChoiceStrategy{},
		},
	}
}

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(_ context.Context, q Q, selected []string) (Outcome, error) {
	out := Outcome{MarksAvailable: q.Marks}
	if len(selected) != 1 {
		return out, errors.New("single-choice selection must contain exactly one label")
	}
	if setEqual(toSet(selected), toSet(q.CorrectAnswers)) {
		out.Correct = true
		out.MarksAwarded = q.Marks
	}
	return out, nil
}

type multiChoiceStrategy struct{}

func (multiChoiceStrategy) Grade(_ context.Context, q Q, selected []string) (Outcome, error) {
	out := Outcome{MarksAvailable: q.Marks}
	if len(selected) == 0 {
		return out, errors.New("multiple-choice selection must not be empty")
	}
	if setEqual(toSet(selected), toSet(q.CorrectAnswers)) {
		out.Correct = true
		out.MarksAwarded = q.Marks
	}
	return out, nil
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
