package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mirrorkit/hubmirror/internal/schema"
)

// UpsertContact inserts or updates a contact keyed by its external id.
//
// Same semantics as UpsertCompany: mutable fields (names, email, company
// association) are overwritten from the candidate, the local id and creation
// timestamp are kept stable, and the stored row is returned.
func (db *DB) UpsertContact(contact *schema.Contact) (*schema.Contact, error) {
	return db.UpsertContactContext(context.Background(), contact)
}

// UpsertContactContext inserts or updates a contact with context support.
func (db *DB) UpsertContactContext(ctx context.Context, contact *schema.Contact) (*schema.Contact, error) {
	if err := contact.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contact: %w", err)
	}

	query := `
	INSERT INTO contacts (id, external_id, first_name, last_name, email, company_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		first_name = excluded.first_name,
		last_name = excluded.last_name,
		email = excluded.email,
		company_id = excluded.company_id
	`

	_, err := db.conn.ExecContext(ctx, query,
		uuid.NewString(),
		contact.ExternalID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		stringToNull(contact.CompanyID),
		timeToString(time.Now()),
	)
	if err != nil {
		return nil, wrapExecError("upsert contact", err)
	}

	stored, err := db.FindContactByExternalIDContext(ctx, contact.ExternalID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("contact %s missing after upsert", contact.ExternalID)
	}
	return stored, nil
}

// GetContact retrieves a contact by its local id.
// Returns ErrNotFound if no such contact exists.
func (db *DB) GetContact(id string) (*schema.Contact, error) {
	return db.GetContactContext(context.Background(), id)
}

// GetContactContext retrieves a contact by local id with context support.
func (db *DB) GetContactContext(ctx context.Context, id string) (*schema.Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, external_id, first_name, last_name, email, company_id, created_at
		 FROM contacts WHERE id = ?`, id)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact %s: %w", id, err)
	}
	return contact, nil
}

// FindContactByExternalID retrieves a contact by its CRM external id.
// Returns (nil, nil) when no such contact exists.
func (db *DB) FindContactByExternalID(externalID string) (*schema.Contact, error) {
	return db.FindContactByExternalIDContext(context.Background(), externalID)
}

// FindContactByExternalIDContext retrieves a contact by external id with
// context support.
func (db *DB) FindContactByExternalIDContext(ctx context.Context, externalID string) (*schema.Contact, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, external_id, first_name, last_name, email, company_id, created_at
		 FROM contacts WHERE external_id = ?`, externalID)

	contact, err := scanContact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by external id %s: %w", externalID, err)
	}
	return contact, nil
}

// ContactUpdate holds the mutable fields of a contact for a partial update.
// Nil fields are left unchanged. Setting CompanyID to an empty string clears
// the association.
type ContactUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	CompanyID *string
}

// UpdateContact patches a contact's mutable fields by local id.
// Returns ErrNotFound if no such contact exists.
func (db *DB) UpdateContact(id string, update ContactUpdate) (*schema.Contact, error) {
	return db.UpdateContactContext(context.Background(), id, update)
}

// UpdateContactContext patches a contact with context support.
func (db *DB) UpdateContactContext(ctx context.Context, id string, update ContactUpdate) (*schema.Contact, error) {
	var sets []string
	var args []interface{}

	if update.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *update.FirstName)
	}
	if update.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *update.LastName)
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.CompanyID != nil {
		sets = append(sets, "company_id = ?")
		args = append(args, stringToNull(*update.CompanyID))
	}
	if len(sets) == 0 {
		return db.GetContactContext(ctx, id)
	}

	args = append(args, id)
	query := "UPDATE contacts SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecError("update contact", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update contact %s: %w", id, err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return db.GetContactContext(ctx, id)
}

// ListContacts retrieves contacts ordered by creation time.
// limit <= 0 means no limit.
func (db *DB) ListContacts(limit, offset int) ([]*schema.Contact, error) {
	return db.ListContactsContext(context.Background(), limit, offset)
}

// ListContactsContext retrieves contacts with context support.
func (db *DB) ListContactsContext(ctx context.Context, limit, offset int) ([]*schema.Contact, error) {
	query := `SELECT id, external_id, first_name, last_name, email, company_id, created_at
	          FROM contacts ORDER BY created_at ASC, external_id ASC`
	var args []interface{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*schema.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}

// DeleteContact removes a contact by local id.
// Returns nil if the contact doesn't exist (idempotent).
func (db *DB) DeleteContact(id string) error {
	return db.DeleteContactContext(context.Background(), id)
}

// DeleteContactContext removes a contact with context support.
func (db *DB) DeleteContactContext(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", id, err)
	}
	return nil
}

// CountContacts returns the total number of contacts.
func (db *DB) CountContacts() (int, error) {
	return db.CountContactsContext(context.Background())
}

// CountContactsContext returns the contact count with context support.
func (db *DB) CountContactsContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// scanContact scans a single contact row.
func scanContact(row rowScanner) (*schema.Contact, error) {
	var contact schema.Contact
	var companyID sql.NullString
	var createdAt string

	err := row.Scan(
		&contact.ID,
		&contact.ExternalID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&companyID,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if companyID.Valid {
		contact.CompanyID = companyID.String
	}
	contact.CreatedAt = stringToTime(createdAt)
	return &contact, nil
}

// stringToNull converts an empty string to a SQL NULL.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
