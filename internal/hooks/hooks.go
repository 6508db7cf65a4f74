// Package hooks implements an in-process lifecycle pub/sub bus: listeners
// subscribe to a closed set of team lifecycle events and are dispatched to
// synchronously, with a panicking listener recovered and swallowed rather
// than aborting the caller.
package hooks

import (
	"sync"

	"github.com/yethikrishna/levelcode-sub001/internal/logging"
)

var log = logging.New("hooks")

// EventType is one of the closed set of team lifecycle events.
type EventType string

const (
	EventTeammateIdle    EventType = "teammate_idle"
	EventTaskCompleted   EventType = "task_completed"
	EventPhaseTransition EventType = "phase_transition"
)

// Event is a single lifecycle occurrence.
type Event struct {
	Type    EventType
	Team    string
	Agent   string
	Payload map[string]interface{}
}

// Listener receives dispatched events. A panicking listener never aborts the
// caller's mutation path: Emitter recovers and swallows it.
type Listener func(Event)

// AnalyticsSink is the external collaborator consumed by emit* helpers: a
// fixed enum of event names reported alongside the raw Event.
type AnalyticsSink interface {
	Capture(event string, distinctID string, properties map[string]interface{})
	Flush()
}

// analyticsEventName maps a hook EventType to its analytics-sink shadow
// event name.
var analyticsEventName = map[EventType]string{
	EventTeammateIdle:    "team.teammate_idle",
	EventTaskCompleted:   "team.task_completed",
	EventPhaseTransition: "team.phase_transition",
}

// Emitter holds the subscription set for one bus. Most processes construct
// a single shared instance; tests and isolated processes may construct
// their own via New.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	sink      AnalyticsSink
}

// New creates a standalone Emitter. sink may be nil to disable analytics
// fan-out.
func New(sink AnalyticsSink) *Emitter {
	return &Emitter{listeners: make(map[int]Listener), sink: sink}
}

// Unsubscribe removes a previously registered listener.
type Unsubscribe func()

// OnTeamHookEvent registers listener and returns an Unsubscribe.
func (e *Emitter) OnTeamHookEvent(listener Listener) Unsubscribe {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = listener
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// DispatchTeamHookEvent calls every subscriber, swallowing any listener
// panic so it can never abort the caller's mutation path.
func (e *Emitter) DispatchTeamHookEvent(event Event) {
	e.mu.RLock()
	listeners := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		listeners = append(listeners, l)
	}
	e.mu.RUnlock()

	for _, listener := range listeners {
		invokeSafely(listener, event)
	}
}

func invokeSafely(listener Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("listener panicked, swallowing", "event_type", event.Type, "recovered", r)
		}
	}()
	listener(event)
}

// emit dispatches event and, if a sink is configured, also reports its
// analytics shadow event.
func (e *Emitter) emit(event Event, distinctID string) {
	e.DispatchTeamHookEvent(event)
	if e.sink == nil {
		return
	}
	name, ok := analyticsEventName[event.Type]
	if !ok {
		return
	}
	e.sink.Capture(name, distinctID, event.Payload)
}

// EmitTeammateIdle dispatches a teammate_idle event.
func (e *Emitter) EmitTeammateIdle(team, agent, summary, completedTaskID string) {
	e.emit(Event{
		Type:  EventTeammateIdle,
		Team:  team,
		Agent: agent,
		Payload: map[string]interface{}{
			"summary":         summary,
			"completedTaskId": completedTaskID,
		},
	}, agent)
}

// EmitTaskCompleted dispatches a task_completed event.
func (e *Emitter) EmitTaskCompleted(team, agent, taskID, taskSubject string) {
	e.emit(Event{
		Type:  EventTaskCompleted,
		Team:  team,
		Agent: agent,
		Payload: map[string]interface{}{
			"taskId":      taskID,
			"taskSubject": taskSubject,
		},
	}, agent)
}

// EmitPhaseTransition dispatches a phase_transition event.
func (e *Emitter) EmitPhaseTransition(team, from, to string) {
	e.emit(Event{
		Type: EventPhaseTransition,
		Team: team,
		Payload: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}, team)
}
