package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	authmw "github.com/brightclass/brightclass-lms/internal/auth/middleware"
	"github.com/brightclass/brightclass-lms/internal/rbac"
)

func isStaff(role string) bool { return role == "teacher" || role == "admin" }

// GET /attempts/{attemptID}/review
// Returns the per-question breakdown of a graded attempt. Review rows are
// always stored; exposure to students is gated by the assignment's
// allow_review flag. Teachers and admins always see them.
func ReviewHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		submission, err := store.GetSubmission(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if !isStaff(role) {
			if submission.StudentID != sub {
				// hide existence from non-owners
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			a, err := store.GetAssignment(r.Context(), submission.AssignmentID)
			if err != nil {
				writeErr(w, err)
				return
			}
			if !a.AllowReview {
				http.Error(w, "review not available for this assignment", http.StatusForbidden)
				return
			}
			if !a.ShowResultsImmediately {
				submission = redactScores(submission)
			}
		}
		writeJSON(w, http.StatusOK, submission)
	}
}

// GET /assignments/{assignmentID}/history
// A student's own graded submissions, oldest first. Teachers may pass
// ?student_id= to inspect any student.
func HistoryHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		studentID := sub
		if isStaff(role) {
			if q := r.URL.Query().Get("student_id"); q != "" {
				studentID = q
			}
		}
		subs, err := store.History(r.Context(), chi.URLParam(r, "assignmentID"), studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		if subs == nil {
			subs = []assignment.Submission{}
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

// GET /assignments/{assignmentID}/result
// The aggregated best-attempt summary for one student.
func ResultHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		studentID := sub
		if isStaff(role) {
			if q := r.URL.Query().Get("student_id"); q != "" {
				studentID = q
			}
		}
		res, err := store.BestResult(r.Context(), chi.URLParam(r, "assignmentID"), studentID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
