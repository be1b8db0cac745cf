package assignment

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Answer is the selected option set for one question. On the wire it is
// either a bare option label ("B", single-answer questions) or an array of
// labels (["A","C"], multiple-answer questions); the shape is validated
// against the question's declared type before grading.
type Answer struct {
	single string
	multi  []string
	isSet  bool // decoded from an array
}

func Single(label string) Answer { return Answer{single: label} }

func Multi(labels ...string) Answer { return Answer{multi: labels, isSet: true} }

func (a Answer) IsSet() bool { return a.isSet }

// Labels returns the selection as a sorted, deduplicated set.
func (a Answer) Labels() []string {
	if !a.isSet {
		if a.single == "" {
			return nil
		}
		return []string{a.single}
	}
	seen := make(map[string]struct{}, len(a.multi))
	out := make([]string, 0, len(a.multi))
	for _, l := range a.multi {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = Answer{single: s}
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*a = Answer{multi: arr, isSet: true}
		return nil
	}
	return fmt.Errorf("%w: expected an option label or an array of labels", ErrMalformedAnswer)
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.isSet {
		return json.Marshal(a.Labels())
	}
	return json.Marshal(a.single)
}

// AnswerMap holds the in-flight or submitted selections keyed by question id.
type AnswerMap map[string]Answer

// ValidateAnswers rejects payloads that cannot be graded safely: unknown
// question ids, shapes that contradict the question's declared type, empty
// selections and undeclared option labels.
func ValidateAnswers(questions []Question, answers AnswerMap) error {
	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for id, ans := range answers {
		q, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: unknown question %q", ErrMalformedAnswer, id)
		}
		labels := ans.Labels()
		if len(labels) == 0 {
			return fmt.Errorf("%w: question %q: empty selection", ErrMalformedAnswer, id)
		}
		switch q.Type {
		case QuestionSingle:
			if ans.IsSet() || len(labels) != 1 {
				return fmt.Errorf("%w: question %q expects a single option label", ErrMalformedAnswer, id)
			}
		case QuestionMultiple:
			if !ans.IsSet() {
				return fmt.Errorf("%w: question %q expects an array of option labels", ErrMalformedAnswer, id)
			}
		default:
			return fmt.Errorf("%w: question %q has unsupported type %q", ErrQuestionBankInconsistent, id, q.Type)
		}
		declared := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			declared[o.Label] = struct{}{}
		}
		for _, l := range labels {
			if _, ok := declared[l]; !ok {
				return fmt.Errorf("%w: question %q: option %q not declared", ErrMalformedAnswer, id, l)
			}
		}
	}
	return nil
}
