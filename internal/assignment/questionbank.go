package assignment

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// The question bank is the assignment's stored question set. It is written by
// the authoring side and read-only here; every read re-validates integrity so
// upstream corruption surfaces as ErrQuestionBankInconsistent instead of a
// silently wrong grade.

func decodeQuestions(raw string) ([]Question, error) {
	var qs []Question
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, fmt.Errorf("%w: undecodable question set: %v", ErrQuestionBankInconsistent, err)
	}
	return qs, nil
}

// ValidateBank checks the structural invariants of an assignment's question
// set: expected count, 2-5 labeled options per question, a non-empty
// correct-answer set that is a subset of the declared labels, and exactly one
// correct label for single-type questions.
func ValidateBank(a *Assignment) error {
	if len(a.Questions) != a.TotalQuestions {
		return fmt.Errorf("%w: assignment %s declares %d questions, bank has %d",
			ErrQuestionBankInconsistent, a.ID, a.TotalQuestions, len(a.Questions))
	}
	seen := make(map[string]struct{}, len(a.Questions))
	for _, q := range a.Questions {
		if q.ID == "" {
			return fmt.Errorf("%w: assignment %s has a question without id", ErrQuestionBankInconsistent, a.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrQuestionBankInconsistent, q.ID)
		}
		seen[q.ID] = struct{}{}

		if q.Type != QuestionSingle && q.Type != QuestionMultiple {
			return fmt.Errorf("%w: question %q has type %q", ErrQuestionBankInconsistent, q.ID, q.Type)
		}
		if len(q.Options) < 2 || len(q.Options) > 5 {
			return fmt.Errorf("%w: question %q has %d options", ErrQuestionBankInconsistent, q.ID, len(q.Options))
		}
		if q.Marks <= 0 {
			return fmt.Errorf("%w: question %q has non-positive marks", ErrQuestionBankInconsistent, q.ID)
		}
		labels := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			if o.Label == "" {
				return fmt.Errorf("%w: question %q has an unlabeled option", ErrQuestionBankInconsistent, q.ID)
			}
			if _, dup := labels[o.Label]; dup {
				return fmt.Errorf("%w: question %q has duplicate option %q", ErrQuestionBankInconsistent, q.ID, o.Label)
			}
			labels[o.Label] = struct{}{}
		}
		if len(q.CorrectAnswers) == 0 {
			return fmt.Errorf("%w: question %q has no correct answers", ErrQuestionBankInconsistent, q.ID)
		}
		if q.Type == QuestionSingle && len(q.CorrectAnswers) != 1 {
			return fmt.Errorf("%w: single-type question %q has %d correct answers",
				ErrQuestionBankInconsistent, q.ID, len(q.CorrectAnswers))
		}
		for _, c := range q.CorrectAnswers {
			if _, ok := labels[c]; !ok {
				return fmt.Errorf("%w: question %q: correct answer %q is not a declared option",
					ErrQuestionBankInconsistent, q.ID, c)
			}
		}
	}
	return nil
}

// StudentView strips answer keys and arranges the questions in the given
// per-attempt presentation order. Order ids not present in the bank are
// skipped; bank questions missing from the order are appended in bank order
// so nothing is ever hidden from the student.
func StudentView(qs []Question, order []string) []Question {
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	out := make([]Question, 0, len(qs))
	used := make(map[string]struct{}, len(order))
	for _, id := range order {
		q, ok := byID[id]
		if !ok {
			continue
		}
		q.CorrectAnswers = nil
		out = append(out, q)
		used[id] = struct{}{}
	}
	for _, q := range qs {
		if _, ok := used[q.ID]; ok {
			continue
		}
		q.CorrectAnswers = nil
		out = append(out, q)
	}
	return out
}

func naturalOrder(qs []Question) []string {
	order := make([]string, len(qs))
	for i, q := range qs {
		order[i] = q.ID
	}
	return order
}

func shuffledOrder(qs []Question) []string {
	order := naturalOrder(qs)
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
