package pipeline

import (
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle state of a sync run.
type State string

const (
	// StateIdle means no run has happened yet.
	StateIdle State = "idle"
	// StateRunning means a run is currently in progress.
	StateRunning State = "running"
	// StateCompleted means the last run finished both phases, possibly
	// with per-record errors.
	StateCompleted State = "completed"
	// StateFailed means the last run aborted before completing.
	StateFailed State = "failed"
)

// Status is a snapshot of the current or last sync run.
//
// Counters only grow during a run and are reset wholesale at the start of
// the next one. Errors holds per-record failure messages; it is capped, with
// omitted entries summarized by a trailing marker.
type Status struct {
	State               State      `json:"state"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CompaniesSynced     int        `json:"companies_synced"`
	ContactsSynced      int        `json:"contacts_synced"`
	ContactsSkipped     int        `json:"contacts_skipped"`
	AssociationsDropped int        `json:"associations_dropped"`
	Errors              []string   `json:"errors,omitempty"`
}

// Counts summarizes how many canonical entities the store holds.
type Counts struct {
	Companies int `json:"companies"`
	Contacts  int `json:"contacts"`
}

// Health is the derived liveness view exposed to callers.
type Health struct {
	Running  bool    `json:"is_running"`
	LastSync *Counts `json:"last_sync_info"`
}

// maxRunErrors caps the per-run error list so a very large sync cannot grow
// it without bound. Entries past the cap are counted and summarized.
const maxRunErrors = 100

// statusStore holds the run status behind a mutex. It is owned exclusively
// by the orchestrator; external readers only ever see defensive copies.
type statusStore struct {
	mu      sync.Mutex
	status  Status
	omitted int
}

func newStatusStore() *statusStore {
	return &statusStore{status: Status{State: StateIdle}}
}

// begin transitions to Running, resetting counters and the error list.
// Returns ErrSyncInProgress without mutating anything if a run is active.
// The check and the transition happen under one lock, so two racing starts
// cannot both pass.
func (s *statusStore) begin(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == StateRunning {
		return ErrSyncInProgress
	}

	started := now
	s.status = Status{
		State:     StateRunning,
		StartedAt: &started,
	}
	s.omitted = 0
	return nil
}

// complete transitions to Completed and records the completion time.
func (s *statusStore) complete(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := now
	s.status.State = StateCompleted
	s.status.CompletedAt = &completed
}

// fail transitions to Failed, records the completion time and appends the
// aggregated failure message to the error list.
func (s *statusStore) fail(now time.Time, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := now
	s.status.State = StateFailed
	s.status.CompletedAt = &completed
	s.appendErrorLocked(msg)
}

// appendError records a per-record failure message for the current run.
func (s *statusStore) appendError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendErrorLocked(msg)
}

func (s *statusStore) appendErrorLocked(msg string) {
	if len(s.status.Errors) >= maxRunErrors {
		s.omitted++
		return
	}
	s.status.Errors = append(s.status.Errors, msg)
}

func (s *statusStore) addCompany() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.CompaniesSynced++
}

func (s *statusStore) addContact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.ContactsSynced++
}

func (s *statusStore) addSkippedContact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.ContactsSkipped++
}

func (s *statusStore) addDroppedAssociation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.AssociationsDropped++
}

// running reports whether a run is currently in progress.
func (s *statusStore) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.State == StateRunning
}

// snapshot returns a deep defensive copy of the status. Mutation by the
// caller never affects internal state.
func (s *statusStore) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := s.status

	if s.status.StartedAt != nil {
		started := *s.status.StartedAt
		copied.StartedAt = &started
	}
	if s.status.CompletedAt != nil {
		completed := *s.status.CompletedAt
		copied.CompletedAt = &completed
	}

	copied.Errors = append([]string(nil), s.status.Errors...)
	if s.omitted > 0 {
		copied.Errors = append(copied.Errors, fmt.Sprintf("(%d additional errors omitted)", s.omitted))
	}

	return copied
}
