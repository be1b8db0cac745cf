package http

import (
	"net/http"
	"strings"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	authmw "github.com/brightclass/brightclass-lms/internal/auth/middleware"
	"github.com/brightclass/brightclass-lms/internal/rbac"
)

// GET /attempts?assignment_id=...&student_id=...&status=...&limit=50&offset=0
// RBAC:
// - teacher/admin may list with any filters
// - students only see their own attempts (student_id is forced to subject)
func ListAttemptsHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())

		assignmentID := strings.TrimSpace(r.URL.Query().Get("assignment_id"))
		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if role != "admin" && role != "teacher" {
			studentID = sub
		}

		list, err := store.ListAttempts(r.Context(), assignment.AttemptListOpts{
			AssignmentID: assignmentID,
			StudentID:    studentID,
			Status:       status,
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		if list == nil {
			list = []assignment.Attempt{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
