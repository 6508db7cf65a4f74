//go:build windows

package hooks

import (
	"github.com/go-toast/toast"
)

// WindowsToastSink implements ToastSink with real Windows toast
// notifications.
type WindowsToastSink struct {
	appID        string
	dashboardURL string
}

// NewWindowsToastSink creates a WindowsToastSink. Empty appID/dashboardURL
// fall back to the local defaults.
func NewWindowsToastSink(appID, dashboardURL string) *WindowsToastSink {
	if appID == "" {
		appID = "levelcode"
	}
	if dashboardURL == "" {
		dashboardURL = "http://localhost:8080"
	}
	return &WindowsToastSink{appID: appID, dashboardURL: dashboardURL}
}

// ShowToast implements ToastSink.
func (s *WindowsToastSink) ShowToast(title, message string) error {
	notification := toast.Notification{
		AppID:   s.appID,
		Title:   title,
		Message: message,
		Audio:   toast.Default,
		Actions: []toast.Action{
			{Type: "protocol", Label: "Open Dashboard", Arguments: s.dashboardURL},
		},
	}
	return notification.Push()
}

// IsSupported implements ToastSink.
func (s *WindowsToastSink) IsSupported() bool { return true }
