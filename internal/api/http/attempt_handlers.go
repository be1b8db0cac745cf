package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	authmw "github.com/brightclass/brightclass-lms/internal/auth/middleware"
)

// GET /assignments/{assignmentID}/eligibility
func EligibilityHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		el, err := store.CanAttempt(r.Context(), chi.URLParam(r, "assignmentID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, el)
	}
}

// POST /assignments/{assignmentID}/attempts
// Starts a new attempt, or returns the caller's running attempt if one
// exists. The response carries the questions (keys stripped), the server
// deadline and the presentation order.
func StartAttemptHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		started, err := store.StartAttempt(r.Context(), chi.URLParam(r, "assignmentID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, started)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		att, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, att)
	}
}

// PUT /attempts/{attemptID}/progress
// Autosave. Idempotent: replaying the same frame yields the same state.
func SaveProgressHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var p assignment.Progress
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		att, err := store.SaveProgress(r.Context(), chi.URLParam(r, "attemptID"), sub, p)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, att)
	}
}

// POST /attempts/{attemptID}/submit
// Finalizes and grades the attempt. Score fields are withheld when the
// assignment defers result publication.
func SubmitHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		var req struct {
			Answers assignment.AnswerMap `json:"answers"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		submission, err := store.Submit(r.Context(), chi.URLParam(r, "attemptID"), sub, req.Answers)
		if err != nil {
			writeErr(w, err)
			return
		}

		a, err := store.GetAssignment(r.Context(), submission.AssignmentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if !a.ShowResultsImmediately {
			submission = redactScores(submission)
		}
		writeJSON(w, http.StatusOK, submission)
	}
}

// redactScores returns a copy safe to show when results are deferred: the
// student learns the attempt was recorded, nothing more.
func redactScores(s *assignment.Submission) *assignment.Submission {
	c := *s
	c.Score = 0
	c.Percentage = 0
	c.Passed = false
	c.Review = nil
	return &c
}

// POST /attempts/{attemptID}/abandon
func AbandonAttemptHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := authmw.SubjectFromContext(r.Context())
		att, err := store.AbandonAttempt(r.Context(), chi.URLParam(r, "attemptID"), sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, att)
	}
}
