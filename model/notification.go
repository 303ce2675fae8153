package model

import "time"

// NotificationKind classifies a user-visible notification.
type NotificationKind int

const (
	NotificationNone NotificationKind = iota
	// NotificationNetworkError is raised when a position fetch fails.
	NotificationNetworkError
)

func (k NotificationKind) String() string {
	switch k {
	case NotificationNetworkError:
		return "network_error"
	default:
		return "none"
	}
}

// Notification is a transient message shown for a bounded duration.
type Notification struct {
	Kind     NotificationKind
	Message  string
	IssuedAt time.Time
}
