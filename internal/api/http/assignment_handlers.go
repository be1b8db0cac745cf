package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	"github.com/brightclass/brightclass-lms/internal/rbac"
)

var validate = validator.New()

// PUT /assignments/{assignmentID}
// Publishes or replaces an assignment definition. Teacher/admin only
// (enforced by the router).
func PutAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a assignment.Assignment
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a.ID = chi.URLParam(r, "assignmentID")
		if err := validate.Struct(&a); err != nil {
			http.Error(w, "invalid assignment: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := store.PutAssignment(r.Context(), &a); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": a.ID})
	}
}

// GET /assignments/{assignmentID}
// Teachers and admins see the full definition including answer keys.
// Students get metadata only; questions are delivered by startAttempt.
func GetAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		role := rbac.RoleFromContext(r.Context())

		if role == "teacher" || role == "admin" {
			a, err := store.GetAssignmentAdmin(r.Context(), id)
			if err != nil {
				writeErr(w, err)
				return
			}
			writeJSON(w, http.StatusOK, a)
			return
		}

		a, err := store.GetAssignment(r.Context(), id)
		if err != nil {
			writeErr(w, err)
			return
		}
		a.Questions = nil
		writeJSON(w, http.StatusOK, a)
	}
}
