package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/brightclass/brightclass-lms/internal/api/http"
	"github.com/brightclass/brightclass-lms/internal/assignment"
	auth "github.com/brightclass/brightclass-lms/internal/auth/middleware"
	"github.com/brightclass/brightclass-lms/internal/db"
	"github.com/brightclass/brightclass-lms/internal/grading"
	"github.com/brightclass/brightclass-lms/internal/rbac"
	"github.com/brightclass/brightclass-lms/internal/results"
	syncx "github.com/brightclass/brightclass-lms/internal/sync"
)

// stands up the protected API the way cmd/gateway wires it
func newTestServer(t *testing.T) (*httptest.Server, map[string]string) {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	events := syncx.NewRecorder(dbh, "test", time.Now)
	store := assignment.NewSQLStore(dbh, grading.NewExactMatchGrader(), results.NewAggregator(), events, time.Now)
	authSvc := auth.NewAuthService("test-secret", dbh, "", "")

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, true))

		pr.With(rbac.Require("assignment:create")).
			Put("/assignments/{assignmentID}", api.PutAssignmentHandler(store))
		pr.With(rbac.Require("assignment:view")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(store))
		pr.With(rbac.RequireAny("attempt:create", "attempt:view")).
			Get("/assignments/{assignmentID}/eligibility", api.EligibilityHandler(store))
		pr.With(rbac.Require("attempt:create")).
			Post("/assignments/{assignmentID}/attempts", api.StartAttemptHandler(store))
		pr.With(rbac.Require("attempt:progress")).
			Put("/attempts/{attemptID}/progress", api.SaveProgressHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitHandler(store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view")).
			Get("/attempts/{attemptID}/review", api.ReviewHandler(store))
		pr.With(rbac.RequireAny("result:view-own", "result:view")).
			Get("/assignments/{assignmentID}/result", api.ResultHandler(store))
	})

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	tokens := map[string]string{}
	for user, role := range map[string]string{"t1": "teacher", "s1": "student"} {
		tok, err := authSvc.IssueJWT(user, role)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		tokens[role] = tok
	}
	return ts, tokens
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func quizBody() map[string]any {
	question := func(id, typ string, correct []string, marks float64) map[string]any {
		return map[string]any{
			"id": id, "type": typ, "prompt": "prompt " + id,
			"options": []map[string]string{
				{"label": "A", "text": "a"}, {"label": "B", "text": "b"},
				{"label": "C", "text": "c"}, {"label": "D", "text": "d"},
			},
			"correct_answers": correct,
			"marks":           marks,
		}
	}
	return map[string]any{
		"title":                    "Fractions quiz",
		"total_questions":          2,
		"total_marks":              5,
		"passing_marks":            3,
		"time_limit_sec":           600,
		"max_attempts":             2,
		"is_active":                true,
		"show_results_immediately": true,
		"allow_review":             true,
		"questions": []map[string]any{
			question("q1", "single", []string{"B"}, 2),
			question("q2", "multiple", []string{"A", "C"}, 3),
		},
	}
}

func TestStudentFlowOverHTTP(t *testing.T) {
	ts, tokens := newTestServer(t)

	// teacher publishes
	if code := doJSON(t, http.MethodPut, ts.URL+"/assignments/hw-1", tokens["teacher"], quizBody(), nil); code != http.StatusOK {
		t.Fatalf("publish: status %d", code)
	}
	// student cannot publish
	if code := doJSON(t, http.MethodPut, ts.URL+"/assignments/hw-2", tokens["student"], quizBody(), nil); code != http.StatusForbidden {
		t.Fatalf("student publish: status %d, want 403", code)
	}

	// student fetch strips questions
	var meta assignment.Assignment
	if code := doJSON(t, http.MethodGet, ts.URL+"/assignments/hw-1", tokens["student"], nil, &meta); code != http.StatusOK {
		t.Fatalf("get assignment: status %d", code)
	}
	if len(meta.Questions) != 0 {
		t.Fatal("student view must not include questions")
	}

	var el assignment.Eligibility
	if code := doJSON(t, http.MethodGet, ts.URL+"/assignments/hw-1/eligibility", tokens["student"], nil, &el); code != http.StatusOK || !el.CanAttempt {
		t.Fatalf("eligibility: status %d, %+v", code, el)
	}

	var started assignment.StartedAttempt
	if code := doJSON(t, http.MethodPost, ts.URL+"/assignments/hw-1/attempts", tokens["student"], nil, &started); code != http.StatusCreated {
		t.Fatalf("start: status %d", code)
	}
	for _, q := range started.Questions {
		if len(q.CorrectAnswers) != 0 {
			t.Fatalf("answer key leaked for %s", q.ID)
		}
	}

	attemptURL := ts.URL + "/attempts/" + started.Attempt.ID
	progress := map[string]any{
		"answers":          map[string]any{"q1": "B"},
		"current_question": 1,
	}
	if code := doJSON(t, http.MethodPut, attemptURL+"/progress", tokens["student"], progress, nil); code != http.StatusOK {
		t.Fatalf("progress: status %d", code)
	}

	var sub assignment.Submission
	submitBody := map[string]any{"answers": map[string]any{"q2": []string{"A", "C"}}}
	if code := doJSON(t, http.MethodPost, attemptURL+"/submit", tokens["student"], submitBody, &sub); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}
	if sub.Score != 5 || !sub.Passed {
		t.Fatalf("submission: score=%v passed=%v", sub.Score, sub.Passed)
	}

	// double submit is a conflict
	if code := doJSON(t, http.MethodPost, attemptURL+"/submit", tokens["student"], submitBody, nil); code != http.StatusConflict {
		t.Fatalf("double submit: status %d, want 409", code)
	}

	var review assignment.Submission
	if code := doJSON(t, http.MethodGet, attemptURL+"/review", tokens["student"], nil, &review); code != http.StatusOK {
		t.Fatalf("review: status %d", code)
	}
	if len(review.Review) != 2 {
		t.Fatalf("review rows = %d", len(review.Review))
	}

	var res results.Result
	if code := doJSON(t, http.MethodGet, ts.URL+"/assignments/hw-1/result", tokens["student"], nil, &res); code != http.StatusOK {
		t.Fatalf("result: status %d", code)
	}
	if res.BestScore != 5 || res.AttemptsUsed != 1 {
		t.Fatalf("result: %+v", res)
	}
}

func TestReviewGatedByFlag(t *testing.T) {
	ts, tokens := newTestServer(t)

	body := quizBody()
	body["allow_review"] = false
	if code := doJSON(t, http.MethodPut, ts.URL+"/assignments/hw-1", tokens["teacher"], body, nil); code != http.StatusOK {
		t.Fatalf("publish: status %d", code)
	}

	var started assignment.StartedAttempt
	if code := doJSON(t, http.MethodPost, ts.URL+"/assignments/hw-1/attempts", tokens["student"], nil, &started); code != http.StatusCreated {
		t.Fatalf("start: status %d", code)
	}
	attemptURL := ts.URL + "/attempts/" + started.Attempt.ID
	if code := doJSON(t, http.MethodPost, attemptURL+"/submit", tokens["student"], nil, nil); code != http.StatusOK {
		t.Fatalf("submit: status %d", code)
	}

	// student blocked, teacher allowed
	if code := doJSON(t, http.MethodGet, attemptURL+"/review", tokens["student"], nil, nil); code != http.StatusForbidden {
		t.Fatalf("student review: status %d, want 403", code)
	}
	if code := doJSON(t, http.MethodGet, attemptURL+"/review", tokens["teacher"], nil, nil); code != http.StatusOK {
		t.Fatalf("teacher review: status %d", code)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/assignments/hw-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", resp.StatusCode)
	}
}
