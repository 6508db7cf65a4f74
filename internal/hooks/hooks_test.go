package hooks

import (
	"testing"
)

type captureSink struct {
	events []string
	ids    []string
}

func (c *captureSink) Capture(event, distinctID string, properties map[string]interface{}) {
	c.events = append(c.events, event)
	c.ids = append(c.ids, distinctID)
}

func (c *captureSink) Flush() {}

func TestDispatchReachesAllListeners(t *testing.T) {
	e := New(nil)
	var got []EventType
	e.OnTeamHookEvent(func(ev Event) { got = append(got, ev.Type) })
	e.OnTeamHookEvent(func(ev Event) { got = append(got, ev.Type) })

	e.DispatchTeamHookEvent(Event{Type: EventTaskCompleted, Team: "alpha"})
	if len(got) != 2 {
		t.Fatalf("expected both listeners called, got %d", len(got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	e := New(nil)
	calls := 0
	unsubscribe := e.OnTeamHookEvent(func(Event) { calls++ })

	e.DispatchTeamHookEvent(Event{Type: EventTeammateIdle})
	unsubscribe()
	e.DispatchTeamHookEvent(Event{Type: EventTeammateIdle})

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestPanickingListenerDoesNotAbortDispatch(t *testing.T) {
	e := New(nil)
	survived := false
	e.OnTeamHookEvent(func(Event) { panic("boom") })
	e.OnTeamHookEvent(func(Event) { survived = true })

	e.DispatchTeamHookEvent(Event{Type: EventPhaseTransition})
	if !survived {
		t.Fatal("expected dispatch to continue past a panicking listener")
	}
}

func TestEmitHelpersShadowToAnalytics(t *testing.T) {
	sink := &captureSink{}
	e := New(sink)

	e.EmitTeammateIdle("alpha", "developer", "done for now", "3")
	e.EmitTaskCompleted("alpha", "developer", "3", "ship it")
	e.EmitPhaseTransition("alpha", "planning", "pre-alpha")

	want := []string{"team.teammate_idle", "team.task_completed", "team.phase_transition"}
	if len(sink.events) != len(want) {
		t.Fatalf("expected %d analytics events, got %d", len(want), len(sink.events))
	}
	for i, name := range want {
		if sink.events[i] != name {
			t.Fatalf("event %d: got %q want %q", i, sink.events[i], name)
		}
	}
	if sink.ids[0] != "developer" || sink.ids[2] != "alpha" {
		t.Fatalf("unexpected distinct ids: %v", sink.ids)
	}
}
