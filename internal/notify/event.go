// Package notify delivers task events off the request path: an in-process
// queue drained by workers that fan out to Redis channels and send mail.
package notify

import "time"

type EventType string

const (
	TaskCreated       EventType = "task.created"
	TaskUpdated       EventType = "task.updated"
	TaskDeleted       EventType = "task.deleted"
	TaskAssigned      EventType = "task.assigned"
	TasksBulkAssigned EventType = "tasks.bulk-assigned"
)

type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId,omitempty"`
	Title     string    `json:"title,omitempty"`
	ActorID   string    `json:"actorId"`
	Recipient string    `json:"recipient,omitempty"`
	Team      string    `json:"team,omitempty"`
	// AdminBroadcast also sends the event to the admin channel.
	AdminBroadcast bool      `json:"adminBroadcast,omitempty"`
	Count          int64     `json:"count,omitempty"`
	At             time.Time `json:"at"`

	// Mail, when set, is sent alongside the event.
	Mail *Mail `json:"-"`
}

type Mail struct {
	To      string
	Subject string
	Body    string
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Enqueue(e Event) bool
}

type discard struct{}

func (discard) Enqueue(Event) bool { return true }

// Discard is a Notifier that drops everything.
var Discard Notifier = discard{}
