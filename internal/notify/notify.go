// Package notify is the single-slot toast channel: one visible notification
// at a time, newer ones overwrite, and each auto-hides after a fixed delay
// unless dismissed first.
package notify

import (
	"sync"
	"time"
)

// AutoHideAfter is how long a notification stays visible without dismissal.
const AutoHideAfter = 4 * time.Second

// Severity levels understood by the snackbar rendering.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notification is the current snackbar state.
type Notification struct {
	Open     bool
	Message  string
	Severity string
}

// Notifier holds the single notification slot.
type Notifier struct {
	mu      sync.Mutex
	current Notification
	gen     uint64
	delay   time.Duration
}

// New creates a notifier with the default auto-hide delay.
func New() *Notifier {
	return &Notifier{delay: AutoHideAfter}
}

// Show replaces the visible notification. An empty severity defaults to info.
func (n *Notifier) Show(message, severity string) {
	if severity == "" {
		severity = SeverityInfo
	}
	n.mu.Lock()
	n.gen++
	gen := n.gen
	n.current = Notification{Open: true, Message: message, Severity: severity}
	delay := n.delay
	n.mu.Unlock()

	time.AfterFunc(delay, func() { n.hideIfCurrent(gen) })
}

// Hide dismisses the visible notification.
func (n *Notifier) Hide() {
	n.mu.Lock()
	n.current = Notification{Severity: n.current.Severity}
	n.mu.Unlock()
}

// Current returns the notification state to render.
func (n *Notifier) Current() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// hideIfCurrent closes the slot only when no newer notification replaced it,
// so a stale timer cannot dismiss a fresh message.
func (n *Notifier) hideIfCurrent(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gen != gen {
		return
	}
	n.current = Notification{Severity: n.current.Severity}
}
