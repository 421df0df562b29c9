// Package export moves mirror contents in and out of JSONL files.
//
// Exports are line-per-record JSON, companies first, so an import into an
// empty database can resolve contact-to-company references in one pass.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mirrorkit/hubmirror/internal/schema"
	"github.com/mirrorkit/hubmirror/internal/store"
)

// listPageSize is how many rows each store query pulls during an export.
const listPageSize = 500

// line is the envelope for one JSONL record.
type line struct {
	Kind    string       `json:"kind"`
	Company *companyLine `json:"company,omitempty"`
	Contact *contactLine `json:"contact,omitempty"`
}

type companyLine struct {
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	CreatedAt  time.Time `json:"created_at"`
}

type contactLine struct {
	ExternalID string    `json:"external_id"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Email      string    `json:"email"`
	// CompanyExternalID references the company by its CRM id, so an
	// import can re-resolve it against freshly assigned local ids.
	CompanyExternalID string    `json:"company_external_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Result summarizes an import or export.
type Result struct {
	Companies int
	Contacts  int
	Errors    []string
}

// ToJSONL writes the whole mirror to w.
func ToJSONL(ctx context.Context, db *store.DB, w io.Writer) (*Result, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	result := &Result{}

	// Local company ids are not portable, so contacts are exported with
	// the company's CRM id instead. Build the lookup while walking
	// companies.
	companyExternal := make(map[string]string)

	for offset := 0; ; offset += listPageSize {
		companies, err := db.ListCompaniesContext(ctx, listPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list companies: %w", err)
		}
		for _, c := range companies {
			companyExternal[c.ID] = c.ExternalID
			if err := enc.Encode(line{Kind: "company", Company: &companyLine{
				ExternalID: c.ExternalID,
				Name:       c.Name,
				Domain:     c.Domain,
				CreatedAt:  c.CreatedAt,
			}}); err != nil {
				return nil, fmt.Errorf("failed to write company: %w", err)
			}
			result.Companies++
		}
		if len(companies) < listPageSize {
			break
		}
	}

	for offset := 0; ; offset += listPageSize {
		contacts, err := db.ListContactsContext(ctx, listPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list contacts: %w", err)
		}
		for _, c := range contacts {
			if err := enc.Encode(line{Kind: "contact", Contact: &contactLine{
				ExternalID:        c.ExternalID,
				FirstName:         c.FirstName,
				LastName:          c.LastName,
				Email:             c.Email,
				CompanyExternalID: companyExternal[c.CompanyID],
				CreatedAt:         c.CreatedAt,
			}}); err != nil {
				return nil, fmt.Errorf("failed to write contact: %w", err)
			}
			result.Contacts++
		}
		if len(contacts) < listPageSize {
			break
		}
	}

	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush output: %w", err)
	}
	return result, nil
}

// ToFile exports the mirror to a JSONL file.
func ToFile(ctx context.Context, db *store.DB, path string) (*Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	result, err := ToJSONL(ctx, db, f)
	if err != nil {
		return nil, err
	}
	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync export file: %w", err)
	}
	return result, nil
}

// FromJSONL reads JSONL records from r and upserts them into the mirror.
//
// Records are upserted by CRM id, so importing into a non-empty mirror
// converges the same way a sync does. Malformed or failing lines are
// reported in the result and skipped.
func FromJSONL(ctx context.Context, db *store.DB, r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	result := &Result{}
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
			continue
		}

		switch l.Kind {
		case "company":
			if l.Company == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing company body", lineNo))
				continue
			}
			_, err := db.UpsertCompanyContext(ctx, &schema.Company{
				ExternalID: l.Company.ExternalID,
				Name:       l.Company.Name,
				Domain:     l.Company.Domain,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
				continue
			}
			result.Companies++

		case "contact":
			if l.Contact == nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: missing contact body", lineNo))
				continue
			}
			contact := &schema.Contact{
				ExternalID: l.Contact.ExternalID,
				FirstName:  l.Contact.FirstName,
				LastName:   l.Contact.LastName,
				Email:      l.Contact.Email,
			}
			if l.Contact.CompanyExternalID != "" {
				company, err := db.FindCompanyByExternalIDContext(ctx, l.Contact.CompanyExternalID)
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
					continue
				}
				if company != nil {
					contact.CompanyID = company.ID
				}
			}
			if _, err := db.UpsertContactContext(ctx, contact); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNo, err))
				continue
			}
			result.Contacts++

		default:
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: unknown kind %q", lineNo, l.Kind))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read import data: %w", err)
	}
	return result, nil
}

// FromFile imports a JSONL file into the mirror.
func FromFile(ctx context.Context, db *store.DB, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	return FromJSONL(ctx, db, f)
}
