package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"evalform-service/internal/app"
	"evalform-service/internal/domain"
	"evalform-service/internal/infra/memory"
)

func TestSessionRoundTripOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	// Start a session.
	res := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"name": "Alice", "jobTitle": "Nurse"}, "")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d", res.StatusCode)
	}
	var sub domain.Submission
	decode(t, res, &sub)
	if len(sub.SessionCode) != 4 {
		t.Fatalf("expected 4-digit code, got %q", sub.SessionCode)
	}

	// Save answers, then resume from a "second browser".
	res = env.do(t, http.MethodPut, "/api/sessions/"+sub.SessionCode+"/answers", map[string]any{
		"answers": map[string]any{"q1": map[string]any{"values": []string{"yes"}}},
	}, "")
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("save: expected 204, got %d", res.StatusCode)
	}

	res = env.do(t, http.MethodGet, "/api/sessions/"+sub.SessionCode, nil, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", res.StatusCode)
	}
	var resumed domain.Submission
	decode(t, res, &resumed)
	if resumed.UserContext.Name != "Alice" || resumed.Answers["q1"].Values[0] != "yes" {
		t.Fatalf("unexpected resumed submission %+v", resumed)
	}

	// Finish produces the summary.
	res = env.do(t, http.MethodPost, "/api/sessions/"+sub.SessionCode+"/finish", map[string]any{
		"answers": map[string]any{"q1": map[string]any{"values": []string{"yes"}}},
	}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d", res.StatusCode)
	}
	var summary domain.EvaluationSummary
	decode(t, res, &summary)
	if len(summary.Buckets[0].Items) != 1 {
		t.Fatalf("expected aggregated summary, got %+v", summary)
	}
}

func TestResumeUnknownCodeReturns404(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	res := env.do(t, http.MethodGet, "/api/sessions/9999", nil, "")
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}
}

func TestValidateStepReturns422WithMissingIDs(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	res := env.do(t, http.MethodPost, "/api/steps/1/validate", map[string]any{"answers": map[string]any{}}, "")
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.StatusCode)
	}
	var body struct {
		Missing []string `json:"missing"`
	}
	decode(t, res, &body)
	if len(body.Missing) != 1 || body.Missing[0] != "q1" {
		t.Fatalf("expected q1 missing, got %v", body.Missing)
	}
}

func TestSuggestionWorkflowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	// Anyone can file a suggestion.
	res := env.do(t, http.MethodPost, "/api/suggestions", map[string]any{
		"kind": "add-resource",
		"payload": map[string]any{
			"resource": map[string]any{"kind": "link", "title": "Guide", "url": "https://example.org"},
		},
		"comment": "useful link",
	}, "")
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", res.StatusCode)
	}
	var sug domain.Suggestion
	decode(t, res, &sug)
	if sug.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", sug.Status)
	}

	// The queue and apply are admin-only.
	res = env.do(t, http.MethodGet, "/api/suggestions", nil, "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
	res = env.do(t, http.MethodPost, "/api/suggestions/"+sug.ID+"/apply", nil, env.userToken)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", res.StatusCode)
	}

	res = env.do(t, http.MethodGet, "/api/suggestions?status=pending", nil, env.adminToken)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", res.StatusCode)
	}
	var queue []domain.Suggestion
	decode(t, res, &queue)
	if len(queue) != 1 {
		t.Fatalf("expected one pending suggestion, got %d", len(queue))
	}

	res = env.do(t, http.MethodPost, "/api/suggestions/"+sug.ID+"/apply", nil, env.adminToken)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("apply: expected 204, got %d", res.StatusCode)
	}
	if !env.invalidated {
		t.Fatalf("expected cache invalidation after apply")
	}

	// A second apply conflicts.
	res = env.do(t, http.MethodPost, "/api/suggestions/"+sug.ID+"/apply", nil, env.adminToken)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.StatusCode)
	}

	res = env.do(t, http.MethodGet, "/api/questionnaire", nil, "")
	var qn domain.Questionnaire
	decode(t, res, &qn)
	if len(qn.Resources) != 1 || qn.Resources[0].Title != "Guide" {
		t.Fatalf("expected applied resource in questionnaire, got %+v", qn.Resources)
	}
}

func TestReportWithoutGeneratorReturnsPlainSummary(t *testing.T) {
	env := newTestEnv(t)
	defer env.server.Close()

	res := env.do(t, http.MethodPost, "/api/sessions", map[string]any{"name": "Alice"}, "")
	var sub domain.Submission
	decode(t, res, &sub)
	env.do(t, http.MethodPut, "/api/sessions/"+sub.SessionCode+"/answers", map[string]any{
		"answers": map[string]any{"q1": map[string]any{"values": []string{"yes"}}},
	}, "")

	res = env.do(t, http.MethodPost, "/api/report", map[string]any{"sessionCode": sub.SessionCode}, "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", res.StatusCode)
	}
	var report app.Report
	decode(t, res, &report)
	if report.SessionCode != sub.SessionCode || report.Narrative != "" {
		t.Fatalf("expected plain report, got %+v", report)
	}
	if len(report.Summary.Buckets[0].Items) != 1 {
		t.Fatalf("expected aggregated summary in report, got %+v", report.Summary)
	}
}

type testEnv struct {
	server      *httptest.Server
	store       *memory.Store
	adminToken  string
	userToken   string
	invalidated bool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	store.Seed(
		[]domain.Question{
			{ID: "q1", Step: 1, Type: domain.QuestionSingle, Title: "Evaluated before?", Required: true,
				Options: []domain.Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}}},
		},
		[]domain.EvaluationItem{
			{ID: "e1", Category: "Evidence", Classification: domain.ClassEffectiveness, Title: "Review evidence"},
		},
		[]domain.Mapping{
			{QuestionID: "q1", AnswerValue: "yes", EvaluationItemID: "e1"},
		},
		nil,
		[]domain.Profile{
			{ID: "admin-1", Name: "Admin", Admin: true},
			{ID: "user-1", Name: "User"},
		},
	)

	env := &testEnv{store: store}

	sessions := app.NewSessionService(store, store)
	review := app.NewReviewService(store)
	reports := app.NewReportService(sessions, nil)
	auth := NewAuthenticator("test-secret")

	handler := NewHandler(sessions, review, reports, store, auth, func() { env.invalidated = true })
	mux := http.NewServeMux()
	handler.Register(mux)
	env.server = httptest.NewServer(mux)

	var err error
	if env.adminToken, err = auth.Mint("admin-1", time.Hour); err != nil {
		t.Fatalf("mint admin token: %v", err)
	}
	if env.userToken, err = auth.Mint("user-1", time.Hour); err != nil {
		t.Fatalf("mint user token: %v", err)
	}
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, env.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return res
}

func decode(t *testing.T, res *http.Response, v any) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
