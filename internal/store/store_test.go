package store

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir())
}

func baseConfig(name string) TeamConfig {
	return TeamConfig{
		Name:        name,
		Description: "test team",
		CreatedAt:   1000,
		LeadAgentID: "lead-abc",
		Phase:       PhasePlanning,
		Members:     nil,
		Settings:    TeamSettings{MaxMembers: 10, AutoAssign: true},
	}
}

func TestCreateLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")

	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	loaded, err := s.LoadTeamConfig("alpha")
	if err != nil {
		t.Fatalf("LoadTeamConfig: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected config, got nil")
	}
	if loaded.Name != cfg.Name || loaded.Phase != cfg.Phase || loaded.LeadAgentID != cfg.LeadAgentID {
		t.Fatalf("round-trip mismatch: got %+v want %+v", loaded, cfg)
	}
}

func TestInvalidTeamNameRejected(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("has a space")
	err := s.CreateTeam(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "Team name may only contain") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestLoadMissingTeamReturnsNil(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.LoadTeamConfig("ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config for missing team")
	}
}

func TestDeleteTeamIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := s.DeleteTeam("alpha"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteTeam("alpha"); err != nil {
		t.Fatalf("second delete should be no-op: %v", err)
	}
	loaded, err := s.LoadTeamConfig("alpha")
	if err != nil {
		t.Fatalf("LoadTeamConfig after delete: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil config after delete")
	}
}

func TestAddRemoveTeamMember(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	member := TeamMember{AgentID: "dev-1", Name: "dev", Role: "senior-engineer", Status: MemberActive, JoinedAt: 10}
	if err := s.AddTeamMember("alpha", member); err != nil {
		t.Fatalf("AddTeamMember: %v", err)
	}

	loaded, err := s.LoadTeamConfig("alpha")
	if err != nil || loaded == nil {
		t.Fatalf("LoadTeamConfig: %v", err)
	}
	if len(loaded.Members) != 1 || loaded.Members[0].AgentID != "dev-1" {
		t.Fatalf("expected one member dev-1, got %+v", loaded.Members)
	}

	if err := s.RemoveTeamMember("alpha", "dev-1"); err != nil {
		t.Fatalf("RemoveTeamMember: %v", err)
	}
	loaded, err = s.LoadTeamConfig("alpha")
	if err != nil || loaded == nil {
		t.Fatalf("LoadTeamConfig: %v", err)
	}
	if len(loaded.Members) != 0 {
		t.Fatalf("expected no members after removal, got %+v", loaded.Members)
	}
}

func TestRoleAutoRepair(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	cfg.Members = []TeamMember{
		{AgentID: "a1", Name: "alice", Role: "Super Engineer Extraordinaire", Status: MemberActive},
	}
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	loaded, err := s.LoadTeamConfig("alpha")
	if err != nil {
		t.Fatalf("LoadTeamConfig: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected config")
	}
	if loaded.Members[0].Role != "senior-engineer" {
		t.Fatalf("expected role remapped to senior-engineer, got %q", loaded.Members[0].Role)
	}

	// The repair is persisted: a second load sees the remapped role without
	// another repair pass.
	again, err := s.LoadTeamConfig("alpha")
	if err != nil || again == nil {
		t.Fatalf("reload after repair: %v", err)
	}
	if again.Members[0].Role != "senior-engineer" {
		t.Fatalf("expected persisted remap, got %q", again.Members[0].Role)
	}
}

func TestDependencyChainLifecycle(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	tasks := []TeamTask{
		{ID: "1", Subject: "first", Status: TaskPending, Blocks: []string{"2"}},
		{ID: "2", Subject: "second", Status: TaskBlocked, BlockedBy: []string{"1"}, Blocks: []string{"3"}},
		{ID: "3", Subject: "third", Status: TaskBlocked, BlockedBy: []string{"2"}},
	}
	for _, task := range tasks {
		if err := s.CreateTask("alpha", task); err != nil {
			t.Fatalf("CreateTask %s: %v", task.ID, err)
		}
	}

	completed := TaskCompleted
	for _, id := range []string{"1", "2", "3"} {
		if _, err := s.UpdateTask("alpha", id, TaskPatch{Status: &completed}); err != nil {
			t.Fatalf("UpdateTask %s: %v", id, err)
		}
	}

	all, err := s.ListTasks("alpha")
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
	for _, task := range all {
		if task.Status != TaskCompleted {
			t.Fatalf("task %s not completed: %+v", task.ID, task)
		}
	}
}

func TestUpdateTaskBumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := s.CreateTask("alpha", TeamTask{ID: "1", Subject: "x"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	before, err := s.GetTask("alpha", "1")
	if err != nil || before == nil {
		t.Fatalf("GetTask: %v", err)
	}

	// Let the millisecond clock move past before.UpdatedAt so the rewrite
	// must land strictly later.
	time.Sleep(2 * time.Millisecond)

	newSubject := "y"
	updated, err := s.UpdateTask("alpha", "1", TaskPatch{Subject: &newSubject})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.Subject != "y" {
		t.Fatalf("expected subject y, got %s", updated.Subject)
	}
	if updated.UpdatedAt <= before.UpdatedAt {
		t.Fatalf("expected updatedAt to increase: before=%d after=%d", before.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Description != before.Description {
		t.Fatalf("unrelated field changed: %+v vs %+v", updated, before)
	}
}

func TestUpdateMissingTaskFails(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	newSubject := "y"
	_, err := s.UpdateTask("alpha", "999", TaskPatch{Subject: &newSubject})
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	var nf *ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %T: %v", err, err)
	}
}

func TestDanglingReferenceDetected(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := s.CreateTask("alpha", TeamTask{ID: "1", Subject: "x", BlockedBy: []string{"404"}}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	dangling, err := s.DanglingReferences("alpha")
	if err != nil {
		t.Fatalf("DanglingReferences: %v", err)
	}
	if len(dangling) != 1 || dangling[0] != [2]string{"1", "404"} {
		t.Fatalf("expected one dangling ref (1,404), got %+v", dangling)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Root().TeamDir("../../etc")
	if err == nil {
		t.Fatalf("expected path traversal rejection")
	}
	if _, ok := err.(*ErrPathTraversal); !ok {
		t.Fatalf("expected ErrPathTraversal, got %T", err)
	}
}

func TestInboxReadIsPure(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if err := s.AppendToInbox("alpha", "dev", RawMessage(`{"type":"message","text":"hi"}`)); err != nil {
		t.Fatalf("AppendToInbox: %v", err)
	}

	first, err := s.ReadInbox("alpha", "dev")
	if err != nil {
		t.Fatalf("first ReadInbox: %v", err)
	}
	second, err := s.ReadInbox("alpha", "dev")
	if err != nil {
		t.Fatalf("second ReadInbox: %v", err)
	}
	if len(first) != len(second) || len(first) != 1 {
		t.Fatalf("expected two equal single-element reads, got %d and %d", len(first), len(second))
	}
}

func TestConcurrentInboxWriters(t *testing.T) {
	s := newTestStore(t)
	cfg := baseConfig("alpha")
	if err := s.CreateTeam(cfg); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := RawMessage(`{"type":"message","text":"concurrent-` + strconv.Itoa(i) + `"}`)
			if err := s.AppendToInbox("alpha", "dev", msg); err != nil {
				t.Errorf("AppendToInbox %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	messages, err := s.ReadInbox("alpha", "dev")
	if err != nil {
		t.Fatalf("ReadInbox: %v", err)
	}
	if len(messages) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(messages))
	}
}
