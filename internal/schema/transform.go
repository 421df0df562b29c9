package schema

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/mirrorkit/hubmirror/internal/crm"
)

// ErrSkipContact marks a raw contact that cannot become a canonical record.
// Skips are accounted for separately from run errors: the record is simply
// omitted from the batch.
var ErrSkipContact = errors.New("contact has no email")

// CompanyResolver looks up an already-synced company by its external id.
// It returns (nil, nil) when no such company exists.
type CompanyResolver func(externalID string) (*Company, error)

// Transformer maps raw CRM records into canonical entities.
//
// Company references on contacts are resolved against the already-synced
// company set via the resolver; companies must therefore be synced before
// contacts are transformed.
type Transformer struct {
	resolve CompanyResolver
	logger  *log.Logger
}

// NewTransformer creates a Transformer. resolve may be nil, in which case
// contacts are never associated with companies. A nil logger falls back to
// a stderr logger.
func NewTransformer(resolve CompanyResolver, logger *log.Logger) *Transformer {
	if logger == nil {
		logger = log.New(os.Stderr, "[transform] ", log.LstdFlags)
	}
	return &Transformer{
		resolve: resolve,
		logger:  logger,
	}
}

// Company maps a raw company record into its canonical form.
//
// Field values are trimmed. A missing name or domain is not fatal: the
// placeholder defaults are substituted so the record is never dropped.
func (t *Transformer) Company(rec crm.Record) *Company {
	name := strings.TrimSpace(rec.Property("name"))
	if name == "" {
		name = DefaultCompanyName
	}

	domain := strings.TrimSpace(rec.Property("domain"))
	if domain == "" {
		domain = DefaultCompanyDomain
	}

	return &Company{
		ExternalID: rec.ID,
		Name:       name,
		Domain:     domain,
	}
}

// Contact maps a raw contact record into its canonical form.
//
// A contact without an email is a hard skip: ErrSkipContact is returned and
// a warning logged, but the caller should not treat this as a run error.
//
// When the record carries an external company reference, the resolver is
// consulted. Resolution failure degrades gracefully: the contact is kept,
// just without an association.
func (t *Transformer) Contact(rec crm.Record) (*Contact, error) {
	email := strings.TrimSpace(rec.Property("email"))
	if email == "" {
		t.logger.Printf("WARNING: skipping contact %s: no email", rec.ID)
		return nil, ErrSkipContact
	}

	contact := &Contact{
		ExternalID: rec.ID,
		FirstName:  strings.TrimSpace(rec.Property("firstname")),
		LastName:   strings.TrimSpace(rec.Property("lastname")),
		Email:      email,
	}

	companyExtID := strings.TrimSpace(rec.Property("associatedcompanyid"))
	if companyExtID != "" && t.resolve != nil {
		company, err := t.resolve(companyExtID)
		switch {
		case err != nil:
			t.logger.Printf("Contact %s: company %s lookup failed, storing without association: %v",
				rec.ID, companyExtID, err)
		case company == nil:
			t.logger.Printf("Contact %s: company %s not found, storing without association",
				rec.ID, companyExtID)
		default:
			contact.CompanyID = company.ID
		}
	}

	return contact, nil
}
