package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

func setupReporter(t *testing.T) *Reporter {
	t.Helper()
	s := store.New(t.TempDir())
	cfg := store.TeamConfig{
		Name:      "alpha",
		CreatedAt: 1,
		Phase:     store.PhasePlanning,
		Members: []store.TeamMember{
			{AgentID: "lead-1", Name: "team-lead", Status: store.MemberActive},
		},
		Settings: store.TeamSettings{MaxMembers: 10},
	}
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := s.CreateTask("alpha", store.TeamTask{ID: "1", Subject: "do it", Status: store.TaskPending}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	return New(s)
}

func TestBuildReport(t *testing.T) {
	r := setupReporter(t)
	rep, err := r.BuildReport("alpha")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if rep == nil {
		t.Fatal("expected a report")
	}
	if rep.Stats.TotalTasks != 1 {
		t.Fatalf("expected 1 task, got %d", rep.Stats.TotalTasks)
	}
	if text := RenderText(rep); text == "" {
		t.Fatal("expected non-empty rendered text")
	}
}

func TestBuildReportMissingTeam(t *testing.T) {
	r := setupReporter(t)
	rep, err := r.BuildReport("ghost")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if rep != nil {
		t.Fatal("expected nil report for missing team")
	}
}

func TestHTTPStatusRoute(t *testing.T) {
	r := setupReporter(t)
	srv := NewServer(r)

	req := httptest.NewRequest(http.MethodGet, "/teams/alpha/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHTTPStatusRouteNotFound(t *testing.T) {
	r := setupReporter(t)
	srv := NewServer(r)

	req := httptest.NewRequest(http.MethodGet, "/teams/ghost/status", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
