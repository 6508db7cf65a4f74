package hooks

// ToastSink is the desktop toast notification sink for teammate_idle and
// task_completed events. The concrete implementation (toast_windows.go)
// only builds on Windows; toast_other.go supplies a no-op everywhere else
// so callers never need a build-tag switch of their own.
type ToastSink interface {
	ShowToast(title, message string) error
	IsSupported() bool
}

// AttachToast subscribes sink to emitter so teammate_idle and task_completed
// events surface as desktop toasts when the platform supports them.
func AttachToast(emitter *Emitter, sink ToastSink) Unsubscribe {
	if !sink.IsSupported() {
		return func() {}
	}
	return emitter.OnTeamHookEvent(func(event Event) {
		switch event.Type {
		case EventTeammateIdle:
			summary, _ := event.Payload["summary"].(string)
			_ = sink.ShowToast(event.Agent+" is idle", summary)
		case EventTaskCompleted:
			subject, _ := event.Payload["taskSubject"].(string)
			_ = sink.ShowToast(event.Agent+" completed a task", subject)
		}
	})
}
