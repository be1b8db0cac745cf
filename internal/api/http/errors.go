package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/brightclass/brightclass-lms/internal/assignment"
	"github.com/brightclass/brightclass-lms/internal/results"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain sentinels onto HTTP statuses. Storage and bank errors
// deliberately leak nothing; details go to the server log only.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assignment.ErrAssignmentNotFound),
		errors.Is(err, assignment.ErrAttemptNotFound),
		errors.Is(err, assignment.ErrSubmissionNotFound),
		errors.Is(err, results.ErrResultNotFound):
		http.Error(w, "not found", http.StatusNotFound)

	case errors.Is(err, assignment.ErrMalformedAnswer):
		http.Error(w, err.Error(), http.StatusBadRequest)

	case errors.Is(err, assignment.ErrAttemptAlreadySubmitted):
		log.Printf("double submit rejected: %v", err)
		http.Error(w, "attempt already submitted", http.StatusConflict)

	case errors.Is(err, assignment.ErrAttemptNotAllowed),
		errors.Is(err, assignment.ErrAttemptNotActive):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, assignment.ErrQuestionBankInconsistent):
		log.Printf("question bank error: %v", err)
		http.Error(w, "assignment unavailable", http.StatusInternalServerError)

	case errors.Is(err, assignment.ErrStorageUnavailable):
		log.Printf("storage error: %v", err)
		http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)

	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
