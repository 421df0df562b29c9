package schema

import (
	"fmt"
	"time"
)

// Contact is the canonical representation of a CRM contact.
//
// CompanyID holds the local id of the associated company, or "" when the
// contact has no resolvable association. Email is mandatory: a contact
// without one is not a usable record and is skipped during transformation.
type Contact struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Email      string    `json:"email"`
	CompanyID  string    `json:"company_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Validate checks that the contact can be persisted.
func (c *Contact) Validate() error {
	if c.ExternalID == "" {
		return fmt.Errorf("external_id is required")
	}
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}
