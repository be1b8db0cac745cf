package http

import (
	"net/http"
	"strconv"

	syncx "github.com/brightclass/brightclass-lms/internal/sync"
)

// GET /sync/events?after=0&limit=100
// Admin-only feed of the append-only event log, for reconciling a classroom
// server with a central site.
func EventsSinceHandler(rec *syncx.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		events, err := rec.Since(r.Context(), after, limit)
		if err != nil {
			writeErr(w, err)
			return
		}
		if events == nil {
			events = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
