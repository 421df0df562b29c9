package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mirrorkit/hubmirror/internal/schema"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return db
}

func TestUpsertCompany_InsertThenUpdate(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.UpsertCompany(&schema.Company{
		ExternalID: "hubspot-123",
		Name:       "A",
		Domain:     "a.com",
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected a local id to be assigned")
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("expected a creation timestamp")
	}

	second, err := db.UpsertCompany(&schema.Company{
		ExternalID: "hubspot-123",
		Name:       "B",
		Domain:     "b.com",
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("local id changed across upserts: %s != %s", second.ID, first.ID)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("creation timestamp changed across upserts: %v != %v", second.CreatedAt, first.CreatedAt)
	}
	if second.Name != "B" || second.Domain != "b.com" {
		t.Errorf("mutable fields did not converge to latest source: %+v", second)
	}

	count, err := db.CountCompanies()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 company after repeated upserts, got %d", count)
	}
}

func TestUpsertContact_KeepsAssociation(t *testing.T) {
	db := setupTestDB(t)

	company, err := db.UpsertCompany(&schema.Company{
		ExternalID: "hubspot-co",
		Name:       "Acme",
		Domain:     "acme.com",
	})
	if err != nil {
		t.Fatalf("company upsert failed: %v", err)
	}

	contact, err := db.UpsertContact(&schema.Contact{
		ExternalID: "hubspot-ct",
		FirstName:  "Jane",
		Email:      "jane@acme.com",
		CompanyID:  company.ID,
	})
	if err != nil {
		t.Fatalf("contact upsert failed: %v", err)
	}
	if contact.CompanyID != company.ID {
		t.Errorf("expected association to %s, got %q", company.ID, contact.CompanyID)
	}

	// Re-upsert without association clears it.
	updated, err := db.UpsertContact(&schema.Contact{
		ExternalID: "hubspot-ct",
		FirstName:  "Jane",
		Email:      "jane@acme.com",
	})
	if err != nil {
		t.Fatalf("contact re-upsert failed: %v", err)
	}
	if updated.CompanyID != "" {
		t.Errorf("expected cleared association, got %q", updated.CompanyID)
	}
	if updated.ID != contact.ID {
		t.Errorf("local id changed across upserts: %s != %s", updated.ID, contact.ID)
	}
}

func TestUpsertContact_InvalidCompanyReference(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.UpsertContact(&schema.Contact{
		ExternalID: "hubspot-ct",
		Email:      "x@y.com",
		CompanyID:  "no-such-company",
	})
	if err == nil {
		t.Fatal("expected a constraint violation for dangling company reference")
	}

	var constraint *ConstraintError
	if !errors.As(err, &constraint) {
		t.Errorf("expected *ConstraintError, got %T: %v", err, err)
	}
}

func TestGetCompany_NotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetCompany("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByExternalID_Absent(t *testing.T) {
	db := setupTestDB(t)

	company, err := db.FindCompanyByExternalID("missing")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if company != nil {
		t.Errorf("expected nil for absent company, got %+v", company)
	}

	contact, err := db.FindContactByExternalID("missing")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if contact != nil {
		t.Errorf("expected nil for absent contact, got %+v", contact)
	}
}

func TestUpdateCompany(t *testing.T) {
	db := setupTestDB(t)

	company, err := db.UpsertCompany(&schema.Company{
		ExternalID: "hubspot-1",
		Name:       "Old Name",
		Domain:     "old.com",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	newName := "New Name"
	updated, err := db.UpdateCompany(company.ID, CompanyUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("expected updated name, got %q", updated.Name)
	}
	if updated.Domain != "old.com" {
		t.Errorf("untouched field changed: %q", updated.Domain)
	}

	if _, err := db.UpdateCompany("missing", CompanyUpdate{Name: &newName}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing company, got %v", err)
	}
}

func TestUpdateContact(t *testing.T) {
	db := setupTestDB(t)

	contact, err := db.UpsertContact(&schema.Contact{
		ExternalID: "hubspot-1",
		Email:      "old@x.com",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	newEmail := "new@x.com"
	updated, err := db.UpdateContact(contact.ID, ContactUpdate{Email: &newEmail})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Email != "new@x.com" {
		t.Errorf("expected updated email, got %q", updated.Email)
	}
}

func TestDeleteCompany_ClearsContactAssociation(t *testing.T) {
	db := setupTestDB(t)

	company, err := db.UpsertCompany(&schema.Company{
		ExternalID: "hubspot-co",
		Name:       "Acme",
		Domain:     "acme.com",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	contact, err := db.UpsertContact(&schema.Contact{
		ExternalID: "hubspot-ct",
		Email:      "jane@acme.com",
		CompanyID:  company.ID,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if err := db.DeleteCompany(company.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	orphaned, err := db.GetContact(contact.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if orphaned.CompanyID != "" {
		t.Errorf("expected cleared association after company delete, got %q", orphaned.CompanyID)
	}

	// Idempotent delete of a missing row.
	if err := db.DeleteCompany(company.ID); err != nil {
		t.Errorf("repeated delete should be a no-op, got %v", err)
	}
}

func TestListAndCount(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 5; i++ {
		_, err := db.UpsertCompany(&schema.Company{
			ExternalID: fmt.Sprintf("hubspot-%d", i),
			Name:       fmt.Sprintf("Company %d", i),
			Domain:     fmt.Sprintf("c%d.com", i),
		})
		if err != nil {
			t.Fatalf("upsert %d failed: %v", i, err)
		}
	}

	all, err := db.ListCompanies(0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 companies, got %d", len(all))
	}

	page, err := db.ListCompanies(2, 2)
	if err != nil {
		t.Fatalf("paged list failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("expected 2 companies in page, got %d", len(page))
	}

	count, err := db.CountCompanies()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected count 5, got %d", count)
	}
}

func TestUpsertCompany_Invalid(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.UpsertCompany(&schema.Company{Name: "No External ID", Domain: "x.com"}); err == nil {
		t.Error("expected validation error for missing external id")
	}
}
