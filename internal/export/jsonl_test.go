package export

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mirrorkit/hubmirror/internal/schema"
	"github.com/mirrorkit/hubmirror/internal/store"
)

func setupDB(t *testing.T) *store.DB {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("Failed to init schema: %v", err)
	}
	return db
}

func seedMirror(t *testing.T, db *store.DB) {
	t.Helper()

	acme, err := db.UpsertCompany(&schema.Company{
		ExternalID: "c-100",
		Name:       "Acme",
		Domain:     "acme.test",
	})
	if err != nil {
		t.Fatalf("Failed to seed company: %v", err)
	}

	if _, err := db.UpsertContact(&schema.Contact{
		ExternalID: "p-200",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@acme.test",
		CompanyID:  acme.ID,
	}); err != nil {
		t.Fatalf("Failed to seed contact: %v", err)
	}
	if _, err := db.UpsertContact(&schema.Contact{
		ExternalID: "p-201",
		Email:      "solo@nowhere.test",
	}); err != nil {
		t.Fatalf("Failed to seed contact: %v", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupDB(t)
	seedMirror(t, src)

	var buf bytes.Buffer
	exported, err := ToJSONL(ctx, src, &buf)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if exported.Companies != 1 || exported.Contacts != 2 {
		t.Fatalf("Expected 1 company and 2 contacts exported, got %+v", exported)
	}

	// Companies must precede contacts so references resolve on import.
	firstContact := strings.Index(buf.String(), `"kind":"contact"`)
	lastCompany := strings.LastIndex(buf.String(), `"kind":"company"`)
	if firstContact < lastCompany {
		t.Error("Expected all companies before contacts in export")
	}

	dst := setupDB(t)
	imported, err := FromJSONL(ctx, dst, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.Companies != 1 || imported.Contacts != 2 {
		t.Fatalf("Expected 1 company and 2 contacts imported, got %+v", imported)
	}
	if len(imported.Errors) != 0 {
		t.Fatalf("Unexpected import errors: %v", imported.Errors)
	}

	// The association survives with a fresh local id.
	contact, err := dst.FindContactByExternalID("p-200")
	if err != nil {
		t.Fatalf("Failed to find imported contact: %v", err)
	}
	if contact == nil {
		t.Fatal("Imported contact not found")
	}
	company, err := dst.GetCompany(contact.CompanyID)
	if err != nil {
		t.Fatalf("Failed to resolve imported company: %v", err)
	}
	if company.ExternalID != "c-100" {
		t.Errorf("Expected contact linked to c-100, got %s", company.ExternalID)
	}

	solo, err := dst.FindContactByExternalID("p-201")
	if err != nil || solo == nil {
		t.Fatalf("Failed to find unassociated contact: %v", err)
	}
	if solo.CompanyID != "" {
		t.Errorf("Expected empty company reference, got %s", solo.CompanyID)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := setupDB(t)
	seedMirror(t, src)

	var buf bytes.Buffer
	if _, err := ToJSONL(ctx, src, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	dst := setupDB(t)
	for i := 0; i < 2; i++ {
		if _, err := FromJSONL(ctx, dst, bytes.NewReader(buf.Bytes())); err != nil {
			t.Fatalf("Import %d failed: %v", i+1, err)
		}
	}

	companies, err := dst.CountCompanies()
	if err != nil {
		t.Fatalf("Failed to count companies: %v", err)
	}
	contacts, err := dst.CountContacts()
	if err != nil {
		t.Fatalf("Failed to count contacts: %v", err)
	}
	if companies != 1 || contacts != 2 {
		t.Errorf("Expected counts to converge to 1/2, got %d/%d", companies, contacts)
	}
}

func TestImportSkipsBadLines(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	input := strings.Join([]string{
		`{"kind":"company","company":{"external_id":"c-1","name":"Good","domain":"good.test"}}`,
		`not json at all`,
		`{"kind":"sprocket"}`,
		`{"kind":"contact"}`,
		`{"kind":"contact","contact":{"external_id":"p-1","email":"ok@good.test","company_external_id":"c-1"}}`,
	}, "\n")

	result, err := FromJSONL(ctx, db, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if result.Companies != 1 || result.Contacts != 1 {
		t.Errorf("Expected 1 company and 1 contact, got %+v", result)
	}
	if len(result.Errors) != 3 {
		t.Errorf("Expected 3 line errors, got %d: %v", len(result.Errors), result.Errors)
	}
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupDB(t)
	seedMirror(t, src)

	path := filepath.Join(t.TempDir(), "mirror.jsonl")
	if _, err := ToFile(ctx, src, path); err != nil {
		t.Fatalf("Export to file failed: %v", err)
	}

	dst := setupDB(t)
	result, err := FromFile(ctx, dst, path)
	if err != nil {
		t.Fatalf("Import from file failed: %v", err)
	}
	if result.Companies != 1 || result.Contacts != 2 {
		t.Errorf("Expected 1 company and 2 contacts, got %+v", result)
	}
}
