package dashboard

import (
	"encoding/json"
	"time"

	"github.com/mirrorkit/hubmirror/internal/pipeline"
)

// Notifier adapts sync lifecycle callbacks into dashboard broadcasts.
// It implements pipeline.Notifier.
type Notifier struct {
	server *Server
}

// NewNotifier creates a notifier that broadcasts through server.
func NewNotifier(server *Server) *Notifier {
	return &Notifier{server: server}
}

type startedPayload struct {
	StartedAt time.Time `json:"started_at"`
}

type completedPayload struct {
	CompaniesSynced int     `json:"companies_synced"`
	ContactsSynced  int     `json:"contacts_synced"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type failedPayload struct {
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// OnSyncStarted broadcasts a sync_started event.
func (n *Notifier) OnSyncStarted(at time.Time) {
	n.send(MessageTypeSyncStarted, startedPayload{StartedAt: at})
}

// OnSyncCompleted broadcasts a sync_completed event with run totals.
func (n *Notifier) OnSyncCompleted(summary pipeline.Summary, duration time.Duration) {
	n.send(MessageTypeSyncCompleted, completedPayload{
		CompaniesSynced: summary.CompaniesSynced,
		ContactsSynced:  summary.ContactsSynced,
		DurationSeconds: duration.Seconds(),
	})
}

// OnSyncFailed broadcasts a sync_failed event.
func (n *Notifier) OnSyncFailed(err error, at time.Time) {
	n.send(MessageTypeSyncFailed, failedPayload{Error: err.Error(), FailedAt: at})
}

func (n *Notifier) send(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	n.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}
