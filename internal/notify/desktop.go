package notify

import (
	"fmt"
	"os/exec"
	"runtime"
)

// DesktopNotifier raises native desktop notifications, through osascript
// on macOS and notify-send on Linux. Other platforms are a silent no-op,
// as is a disabled notifier.
type DesktopNotifier struct {
	enabled bool
}

func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", n.Message, n.Title)
		return exec.Command("osascript", "-e", script).Run()
	case "linux":
		return exec.Command("notify-send", "--icon", IconForType(n.Type), n.Title, n.Message).Run()
	}
	return nil
}

// IconForType maps a notification type to a freedesktop icon name
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
