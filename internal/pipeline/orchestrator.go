// Package pipeline implements the synchronization pipeline that mirrors CRM
// records into the local store.
//
// A run proceeds in two strictly ordered phases: all companies first, then
// all contacts. Contacts may reference companies by external id, so the
// contact phase must observe the fully populated company set.
//
// Per-record failures (a transform or upsert going wrong) are data, not
// control flow: they are appended to the run's error list and the phase
// continues with the next record. Only run-level failures - a failed health
// check or the page traversal itself aborting - terminate the run.
//
// At most one run may be in progress at a time; the guard is a mutex-held
// state transition, so concurrent start requests cannot both pass.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mirrorkit/hubmirror/internal/crm"
	"github.com/mirrorkit/hubmirror/internal/schema"
	"github.com/mirrorkit/hubmirror/internal/store"
)

// Fetcher walks paged CRM collections. Satisfied by *crm.Client.
type Fetcher interface {
	// ForEachPage invokes fn with each page of records in fetch order.
	ForEachPage(ctx context.Context, kind string, properties []string, fn func(records []crm.Record) error) error

	// HealthCheck reports whether the CRM is reachable.
	HealthCheck(ctx context.Context) bool
}

// Notifier receives sync lifecycle events. Satisfied by the dashboard
// handler; a nil notifier disables notifications.
type Notifier interface {
	OnSyncStarted(at time.Time)
	OnSyncCompleted(summary Summary, duration time.Duration)
	OnSyncFailed(err error, at time.Time)
}

// Summary is the result of a completed sync run.
type Summary struct {
	CompaniesSynced int       `json:"companies_synced"`
	ContactsSynced  int       `json:"contacts_synced"`
	SyncedAt        time.Time `json:"synced_at"`
}

// Config holds optional orchestrator collaborators.
type Config struct {
	// Notifier for sync lifecycle events (nil disables).
	Notifier Notifier

	// Logger for pipeline activity. nil falls back to a stderr logger.
	Logger *log.Logger
}

// Orchestrator sequences sync runs against the store.
//
// The run status is owned exclusively by the orchestrator; Status() hands
// out defensive copies, never a shared reference.
type Orchestrator struct {
	fetcher  Fetcher
	db       *store.DB
	status   *statusStore
	notifier Notifier
	logger   *log.Logger
}

// New creates an Orchestrator. config may be nil.
func New(fetcher Fetcher, db *store.DB, config *Config) *Orchestrator {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Orchestrator{
		fetcher:  fetcher,
		db:       db,
		status:   newStatusStore(),
		notifier: config.Notifier,
		logger:   logger,
	}
}

// Run performs one full sync: health check, company phase, contact phase.
//
// Returns ErrSyncInProgress if a run is already active (no state changes),
// ErrUpstreamUnavailable if the pre-flight health check fails, or a
// *FatalError if a phase aborts. Per-record failures never fail the run;
// they are collected in the status error list.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	if err := o.status.begin(start); err != nil {
		return nil, err
	}

	o.logger.Printf("Starting sync run")
	if o.notifier != nil {
		o.notifier.OnSyncStarted(start)
	}

	if !o.fetcher.HealthCheck(ctx) {
		o.logger.Printf("Health check failed, aborting run")
		o.failRun(ErrUpstreamUnavailable)
		return nil, ErrUpstreamUnavailable
	}

	if err := o.syncCompanies(ctx); err != nil {
		return nil, o.failRun(err)
	}

	if err := o.syncContacts(ctx); err != nil {
		return nil, o.failRun(err)
	}

	completed := time.Now()
	o.status.complete(completed)

	snap := o.status.snapshot()
	summary := Summary{
		CompaniesSynced: snap.CompaniesSynced,
		ContactsSynced:  snap.ContactsSynced,
		SyncedAt:        completed,
	}

	o.logger.Printf("Sync complete: companies=%d contacts=%d skipped=%d errors=%d in %v",
		snap.CompaniesSynced, snap.ContactsSynced, snap.ContactsSkipped,
		len(snap.Errors), completed.Sub(start).Round(time.Millisecond))

	if o.notifier != nil {
		o.notifier.OnSyncCompleted(summary, completed.Sub(start))
	}

	return &summary, nil
}

// failRun marks the run Failed and wraps the cause. ErrUpstreamUnavailable
// passes through unwrapped so callers can match it with errors.Is.
func (o *Orchestrator) failRun(cause error) error {
	now := time.Now()
	o.status.fail(now, cause.Error())

	if o.notifier != nil {
		o.notifier.OnSyncFailed(cause, now)
	}

	if cause == ErrUpstreamUnavailable {
		return cause
	}
	return &FatalError{Err: cause}
}

// syncCompanies runs the company phase: fetch all pages, transform each raw
// record, upsert each. Per-record upsert failures are recorded and skipped.
func (o *Orchestrator) syncCompanies(ctx context.Context) error {
	transformer := schema.NewTransformer(nil, o.logger)

	return o.fetcher.ForEachPage(ctx, crm.KindCompanies, crm.CompanyProperties, func(records []crm.Record) error {
		for _, rec := range records {
			company := transformer.Company(rec)

			if _, err := o.db.UpsertCompanyContext(ctx, company); err != nil {
				o.logger.Printf("WARNING: failed to sync company %s: %v", rec.ID, err)
				o.status.appendError(fmt.Sprintf("company %s: %v", rec.ID, err))
				continue
			}
			o.status.addCompany()
		}
		return nil
	})
}

// syncContacts runs the contact phase against the now-populated company set.
// Contacts without an email are skipped (accounted, not errors); unresolvable
// company references degrade to no association.
func (o *Orchestrator) syncContacts(ctx context.Context) error {
	resolve := func(externalID string) (*schema.Company, error) {
		return o.db.FindCompanyByExternalIDContext(ctx, externalID)
	}
	transformer := schema.NewTransformer(resolve, o.logger)

	return o.fetcher.ForEachPage(ctx, crm.KindContacts, crm.ContactProperties, func(records []crm.Record) error {
		for _, rec := range records {
			contact, err := transformer.Contact(rec)
			if err != nil {
				// No email: skip, accounted separately from run errors.
				o.status.addSkippedContact()
				continue
			}

			if rec.Property("associatedcompanyid") != "" && contact.CompanyID == "" {
				o.status.addDroppedAssociation()
			}

			if _, err := o.db.UpsertContactContext(ctx, contact); err != nil {
				o.logger.Printf("WARNING: failed to sync contact %s: %v", rec.ID, err)
				o.status.appendError(fmt.Sprintf("contact %s: %v", rec.ID, err))
				continue
			}
			o.status.addContact()
		}
		return nil
	})
}

// Status returns a defensive copy of the current run status.
func (o *Orchestrator) Status() Status {
	return o.status.snapshot()
}

// Running reports whether a run is currently in progress.
func (o *Orchestrator) Running() bool {
	return o.status.running()
}

// LastSyncInfo returns the stored entity counts, or nil if counting fails.
// A nil result is a soft signal, never an error.
func (o *Orchestrator) LastSyncInfo(ctx context.Context) *Counts {
	companies, err := o.db.CountCompaniesContext(ctx)
	if err != nil {
		o.logger.Printf("WARNING: failed to count companies: %v", err)
		return nil
	}
	contacts, err := o.db.CountContactsContext(ctx)
	if err != nil {
		o.logger.Printf("WARNING: failed to count contacts: %v", err)
		return nil
	}
	return &Counts{Companies: companies, Contacts: contacts}
}

// Health returns the derived liveness view: whether a run is active and the
// latest store counts (nil if counting fails).
func (o *Orchestrator) Health(ctx context.Context) Health {
	return Health{
		Running:  o.status.running(),
		LastSync: o.LastSyncInfo(ctx),
	}
}
