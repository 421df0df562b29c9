// Package crm provides the HTTP client for the external CRM API.
//
// The client walks cursor-paginated object collections (companies, contacts),
// applying a fixed delay between page requests to stay inside the CRM's rate
// limits. Records come back as opaque property bags; transformation into
// canonical entities happens in the schema package.
package crm

// Record is a single raw object as returned by the CRM API.
//
// The ID is the CRM's own identifier for the object. Properties is a flat
// bag of named string fields whose meaning is defined by the CRM; records
// have no local meaning until transformed.
type Record struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Property returns the named property, or "" if absent.
func (r Record) Property(name string) string {
	return r.Properties[name]
}

// Object collection kinds understood by the client.
const (
	KindCompanies = "companies"
	KindContacts  = "contacts"
)

// Property sets requested for each collection kind.
var (
	// CompanyProperties are the fields fetched for company records.
	CompanyProperties = []string{"name", "domain"}

	// ContactProperties are the fields fetched for contact records.
	ContactProperties = []string{"firstname", "lastname", "email", "associatedcompanyid"}
)

// listResponse is the wire shape of a paged object listing:
// {results: [...], paging: {next: {after: "..."}}}.
type listResponse struct {
	Results []Record `json:"results"`
	Paging  *paging  `json:"paging,omitempty"`
}

type paging struct {
	Next *pageCursor `json:"next,omitempty"`
}

type pageCursor struct {
	After string `json:"after"`
}

// nextCursor returns the continuation token, or "" when the listing is
// exhausted.
func (lr *listResponse) nextCursor() string {
	if lr.Paging == nil || lr.Paging.Next == nil {
		return ""
	}
	return lr.Paging.Next.After
}
