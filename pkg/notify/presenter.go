package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDismissAfter is how long a notification stays visible.
const DefaultDismissAfter = 5 * time.Second

// Notification is a single transient message.
type Notification struct {
	ID       string
	Message  string
	Severity Severity
	ShownAt  time.Time
}

// Surface renders and removes notifications.
type Surface interface {
	Mount(notification Notification)
	Unmount(notification Notification)
}

// Presenter shows at most one notification at a time on a Surface and
// dismisses it automatically.
type Presenter struct {
	mutex        sync.Mutex
	surface      Surface
	dismissAfter time.Duration
	current      *Notification
	timer        *time.Timer
}

// NewPresenter constructs a Presenter. A non-positive dismissAfter uses DefaultDismissAfter.
func NewPresenter(surface Surface, dismissAfter time.Duration) *Presenter {
	if surface == nil {
		panic("notification surface is required")
	}
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Presenter{surface: surface, dismissAfter: dismissAfter}
}

// Show replaces the current notification with a new one.
func (presenter *Presenter) Show(message string, severity Severity) {
	notification := Notification{
		ID:       uuid.NewString(),
		Message:  message,
		Severity: severity.Normalize(),
		ShownAt:  time.Now().UTC(),
	}

	presenter.mutex.Lock()
	defer presenter.mutex.Unlock()
	presenter.dismissLocked()
	presenter.current = &notification
	presenter.surface.Mount(notification)
	presenter.timer = time.AfterFunc(presenter.dismissAfter, func() {
		presenter.expire(notification.ID)
	})
}

// Dismiss removes the current notification, if any.
func (presenter *Presenter) Dismiss() {
	presenter.mutex.Lock()
	defer presenter.mutex.Unlock()
	presenter.dismissLocked()
}

// Active returns the notification currently displayed.
func (presenter *Presenter) Active() (Notification, bool) {
	presenter.mutex.Lock()
	defer presenter.mutex.Unlock()
	if presenter.current == nil {
		return Notification{}, false
	}
	return *presenter.current, true
}

func (presenter *Presenter) expire(notificationID string) {
	presenter.mutex.Lock()
	defer presenter.mutex.Unlock()
	if presenter.current == nil || presenter.current.ID != notificationID {
		return
	}
	presenter.dismissLocked()
}

func (presenter *Presenter) dismissLocked() {
	if presenter.timer != nil {
		presenter.timer.Stop()
		presenter.timer = nil
	}
	if presenter.current == nil {
		return
	}
	presenter.surface.Unmount(*presenter.current)
	presenter.current = nil
}
