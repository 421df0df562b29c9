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

// UpsertCompany inserts or updates a company keyed by its external id.
//
// If a company with the same external id exists, its mutable fields (name,
// domain) are overwritten and the existing local id and creation timestamp
// are kept. Otherwise a new row is inserted with a fresh local id and the
// current timestamp. The stored row is returned either way, which makes
// repeated upserts of identical input fully idempotent.
func (db *DB) UpsertCompany(company *schema.Company) (*schema.Company, error) {
	return db.UpsertCompanyContext(context.Background(), company)
}

// UpsertCompanyContext inserts or updates a company with context support.
func (db *DB) UpsertCompanyContext(ctx context.Context, company *schema.Company) (*schema.Company, error) {
	if err := company.Validate(); err != nil {
		return nil, fmt.Errorf("invalid company: %w", err)
	}

	query := `
	INSERT INTO companies (id, external_id, name, domain, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		name = excluded.name,
		domain = excluded.domain
	`

	_, err := db.conn.ExecContext(ctx, query,
		uuid.NewString(),
		company.ExternalID,
		company.Name,
		company.Domain,
		timeToString(time.Now()),
	)
	if err != nil {
		return nil, wrapExecError("upsert company", err)
	}

	stored, err := db.FindCompanyByExternalIDContext(ctx, company.ExternalID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("company %s missing after upsert", company.ExternalID)
	}
	return stored, nil
}

// GetCompany retrieves a company by its local id.
// Returns ErrNotFound if no such company exists.
func (db *DB) GetCompany(id string) (*schema.Company, error) {
	return db.GetCompanyContext(context.Background(), id)
}

// GetCompanyContext retrieves a company by local id with context support.
func (db *DB) GetCompanyContext(ctx context.Context, id string) (*schema.Company, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, external_id, name, domain, created_at FROM companies WHERE id = ?`, id)

	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company %s: %w", id, err)
	}
	return company, nil
}

// FindCompanyByExternalID retrieves a company by its CRM external id.
// Returns (nil, nil) when no such company exists.
func (db *DB) FindCompanyByExternalID(externalID string) (*schema.Company, error) {
	return db.FindCompanyByExternalIDContext(context.Background(), externalID)
}

// FindCompanyByExternalIDContext retrieves a company by external id with
// context support.
func (db *DB) FindCompanyByExternalIDContext(ctx context.Context, externalID string) (*schema.Company, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, external_id, name, domain, created_at FROM companies WHERE external_id = ?`, externalID)

	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company by external id %s: %w", externalID, err)
	}
	return company, nil
}

// CompanyUpdate holds the mutable fields of a company for a partial update.
// Nil fields are left unchanged.
type CompanyUpdate struct {
	Name   *string
	Domain *string
}

// UpdateCompany patches a company's mutable fields by local id.
// Returns ErrNotFound if no such company exists.
func (db *DB) UpdateCompany(id string, update CompanyUpdate) (*schema.Company, error) {
	return db.UpdateCompanyContext(context.Background(), id, update)
}

// UpdateCompanyContext patches a company with context support.
func (db *DB) UpdateCompanyContext(ctx context.Context, id string, update CompanyUpdate) (*schema.Company, error) {
	var sets []string
	var args []interface{}

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Domain != nil {
		sets = append(sets, "domain = ?")
		args = append(args, *update.Domain)
	}
	if len(sets) == 0 {
		return db.GetCompanyContext(ctx, id)
	}

	args = append(args, id)
	query := "UPDATE companies SET " + strings.Join(sets, ", ") + " WHERE id = ?"

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, wrapExecError("update company", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update company %s: %w", id, err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return db.GetCompanyContext(ctx, id)
}

// ListCompanies retrieves companies ordered by creation time.
// limit <= 0 means no limit.
func (db *DB) ListCompanies(limit, offset int) ([]*schema.Company, error) {
	return db.ListCompaniesContext(context.Background(), limit, offset)
}

// ListCompaniesContext retrieves companies with context support.
func (db *DB) ListCompaniesContext(ctx context.Context, limit, offset int) ([]*schema.Company, error) {
	query := `SELECT id, external_id, name, domain, created_at FROM companies ORDER BY created_at ASC, external_id ASC`
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
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*schema.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating companies: %w", err)
	}
	return companies, nil
}

// DeleteCompany removes a company by local id.
// Returns nil if the company doesn't exist (idempotent). Contacts keep
// their row but lose the association (ON DELETE SET NULL).
func (db *DB) DeleteCompany(id string) error {
	return db.DeleteCompanyContext(context.Background(), id)
}

// DeleteCompanyContext removes a company with context support.
func (db *DB) DeleteCompanyContext(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete company %s: %w", id, err)
	}
	return nil
}

// CountCompanies returns the total number of companies.
func (db *DB) CountCompanies() (int, error) {
	return db.CountCompaniesContext(context.Background())
}

// CountCompaniesContext returns the company count with context support.
func (db *DB) CountCompaniesContext(ctx context.Context) (int, error) {
	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanCompany scans a single company row.
func scanCompany(row rowScanner) (*schema.Company, error) {
	var company schema.Company
	var createdAt string

	if err := row.Scan(&company.ID, &company.ExternalID, &company.Name, &company.Domain, &createdAt); err != nil {
		return nil, err
	}
	company.CreatedAt = stringToTime(createdAt)
	return &company, nil
}
