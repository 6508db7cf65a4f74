package phase

import (
	"sort"
	"testing"

	"github.com/yethikrishna/levelcode-sub001/internal/store"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to store.Phase
		want     bool
	}{
		{store.PhasePlanning, store.PhasePreAlpha, true},
		{store.PhasePlanning, store.PhaseAlpha, false},
		{store.PhaseAlpha, store.PhasePreAlpha, false},
		{store.PhaseMature, store.PhaseMature, false},
		{store.PhaseBeta, store.PhaseProduction, true},
	}
	for _, c := range cases {
		got := CanTransition(c.from, c.to)
		if got != c.want {
			t.Errorf("CanTransition(%s,%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTransitionPhaseRejectsSkip(t *testing.T) {
	cfg := store.TeamConfig{Name: "alpha", Phase: store.PhasePlanning}
	_, err := TransitionPhase(cfg, store.PhaseAlpha)
	if err == nil {
		t.Fatalf("expected error")
	}
	want := `Cannot transition from "planning" to "alpha". Only forward single-step transitions are allowed.`
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}

func TestTransitionPhaseLeavesOriginalUnchanged(t *testing.T) {
	cfg := store.TeamConfig{Name: "alpha", Phase: store.PhasePlanning}
	next, err := TransitionPhase(cfg, store.PhasePreAlpha)
	if err != nil {
		t.Fatalf("TransitionPhase: %v", err)
	}
	if next.Phase != store.PhasePreAlpha {
		t.Fatalf("expected new config phase pre-alpha, got %s", next.Phase)
	}
	if cfg.Phase != store.PhasePlanning {
		t.Fatalf("expected original config untouched, got %s", cfg.Phase)
	}
}

func TestToolGatingTable(t *testing.T) {
	if !IsToolAllowedInPhase(ToolTaskCreate, store.PhasePlanning) {
		t.Fatalf("task_create should be allowed in planning")
	}
	if IsToolAllowedInPhase(ToolSendMessage, store.PhasePlanning) {
		t.Fatalf("send_message should not be allowed in planning")
	}
	if !IsToolAllowedInPhase(ToolSendMessage, store.PhasePreAlpha) {
		t.Fatalf("send_message should be allowed in pre-alpha")
	}
	if !IsToolAllowedInPhase(ToolTeamDelete, store.PhaseBeta) {
		t.Fatalf("team_delete (min alpha) should remain allowed in beta")
	}
	if IsToolAllowedInPhase(ToolTeamDelete, store.PhasePlanning) {
		t.Fatalf("team_delete should not be allowed in planning")
	}
	if !IsToolAllowedInPhase(Tool("some_non_team_tool"), store.PhasePlanning) {
		t.Fatalf("non-team tools should always pass through")
	}
}

func TestGetMinimumPhaseForTool(t *testing.T) {
	if got := GetMinimumPhaseForTool(ToolTaskCreate); got != store.PhasePlanning {
		t.Fatalf("expected planning, got %s", got)
	}
	if got := GetMinimumPhaseForTool(Tool("unknown")); got != "" {
		t.Fatalf("expected empty for non-team tool, got %s", got)
	}
}

func TestGetPhaseToolsIsSupersetMonotone(t *testing.T) {
	planningTools := toolSet(GetPhaseTools(store.PhasePlanning))
	preAlphaTools := toolSet(GetPhaseTools(store.PhasePreAlpha))
	alphaTools := toolSet(GetPhaseTools(store.PhaseAlpha))

	for tool := range planningTools {
		if !preAlphaTools[tool] {
			t.Fatalf("tool %s allowed in planning must remain allowed in pre-alpha", tool)
		}
	}
	for tool := range preAlphaTools {
		if !alphaTools[tool] {
			t.Fatalf("tool %s allowed in pre-alpha must remain allowed in alpha", tool)
		}
	}
}

func toolSet(tools []Tool) map[Tool]bool {
	set := make(map[Tool]bool, len(tools))
	for _, t := range tools {
		set[t] = true
	}
	return set
}

func TestRegisteredToolsSortedAndComplete(t *testing.T) {
	infos := RegisteredTools()
	if len(infos) != len(minPhase) {
		t.Fatalf("expected %d registered tools, got %d", len(minPhase), len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Name >= infos[i].Name {
			t.Fatalf("expected sorted registry, got %s before %s", infos[i-1].Name, infos[i].Name)
		}
	}
}

func TestDescribe(t *testing.T) {
	info, ok := Describe(ToolTeamDelete)
	if !ok || info.MinPhase != store.PhaseAlpha {
		t.Fatalf("expected team_delete gated at alpha, got %+v ok=%v", info, ok)
	}
	if _, ok := Describe(Tool("free_tool")); ok {
		t.Fatal("expected non-team tool to have no registry entry")
	}
}

func TestGetPhaseToolsSortedNames(t *testing.T) {
	tools := GetPhaseTools(store.PhaseMature)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = string(tool)
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("expected GetPhaseTools to return names in sorted order, got %v", names)
	}
	if len(names) != len(minPhase) {
		t.Fatalf("expected all %d team-scoped tools allowed at mature, got %d", len(minPhase), len(names))
	}
}
