// Package schema provides the canonical entity types for mirrored CRM records.
//
// Companies and contacts arrive from the CRM as raw property bags; this
// package defines their locally normalized shapes and the transformer that
// maps raw records into them.
package schema

import (
	"fmt"
	"time"
)

// Company is the canonical representation of a CRM company.
//
// ID is locally generated at first insert and stable across re-syncs.
// ExternalID is the CRM's identifier, unique per entity type and immutable
// once set. CreatedAt is set once at first insert and never overwritten.
type Company struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Domain     string    `json:"domain"`
	CreatedAt  time.Time `json:"created_at"`
}

// Placeholder values substituted when a company record arrives without a
// name or domain. A company is always worth keeping, so these two fields
// never cause a skip.
const (
	DefaultCompanyName   = "Unknown Company"
	DefaultCompanyDomain = "unknown"
)

// Validate checks that the company can be persisted.
func (c *Company) Validate() error {
	if c.ExternalID == "" {
		return fmt.Errorf("external_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	return nil
}
