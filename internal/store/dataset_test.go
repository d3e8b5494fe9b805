package store

import (
	"strings"
	"testing"

	"github.com/speechvault/speechvault/internal/database"
	"github.com/speechvault/speechvault/internal/model"
)

func setupDatasetTestDB(t *testing.T) (*DatasetStore, *AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewDatasetStore(db), NewAccountStore(db)
}

func TestDatasetCreate(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("creator@example.com", testPasswordHash)
	d, cap, err := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1")
	if err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	if d.Status != model.DatasetCreated {
		t.Errorf("status = %q, want created", d.Status)
	}
	if d.PolicyID != "ns-1" {
		t.Errorf("policy_id = %q, want ns-1", d.PolicyID)
	}
	if d.ContentRef != nil {
		t.Error("content_ref must be unset before attach")
	}
	if cap.DatasetID != d.ID {
		t.Errorf("cap dataset_id = %d, want %d", cap.DatasetID, d.ID)
	}
	if !strings.HasPrefix(cap.Token, "SV-") {
		t.Errorf("cap token = %q, want SV- prefix", cap.Token)
	}
}

func TestDatasetPolicyIDUnique(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("creator@example.com", testPasswordHash)
	if _, _, err := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1"); err == nil {
		t.Error("expected unique constraint error for reused policy id")
	}
}

func TestDatasetCapTokensUniquePerDataset(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("creator@example.com", testPasswordHash)
	_, cap1, err := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, cap2, err := ds.Create(a.ID, "quechua", "cusco", 60, "ns-2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if cap1.Token == cap2.Token {
		t.Error("cap tokens must be unique")
	}

	got, err := ds.GetCap(cap1.Token)
	if err != nil {
		t.Fatalf("get cap: %v", err)
	}
	if got == nil || got.DatasetID != cap1.DatasetID {
		t.Error("cap must resolve to its own dataset")
	}

	missing, err := ds.GetCap("SV-0000-0000-0000-0000")
	if err != nil {
		t.Fatalf("get unknown cap: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown cap token")
	}
}

func TestDatasetAttachContentOneWay(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("creator@example.com", testPasswordHash)
	d, _, _ := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1")

	ok, err := ds.AttachContent(d.ID, "sha256/ref", "ns-1/key-a")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !ok {
		t.Fatal("first attach must succeed")
	}

	got, _ := ds.GetByID(d.ID)
	if got.Status != model.DatasetPublished {
		t.Errorf("status = %q, want published", got.Status)
	}
	if got.ContentRef == nil || *got.ContentRef != "sha256/ref" {
		t.Error("content_ref not recorded")
	}
	if got.ContentKeyID == nil || *got.ContentKeyID != "ns-1/key-a" {
		t.Error("content_key_id not recorded")
	}

	ok, err = ds.AttachContent(d.ID, "sha256/other", "ns-1/key-b")
	if err != nil {
		t.Fatalf("second attach: %v", err)
	}
	if ok {
		t.Error("second attach must match zero rows")
	}
}

func TestDatasetEarnings(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("creator@example.com", testPasswordHash)
	d, _, _ := ds.Create(a.ID, "quechua", "cusco", 60, "ns-1")

	tx, err := as.db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ds.CreditEarningsTx(tx, d.ID, 500); err != nil {
		t.Fatalf("credit earnings: %v", err)
	}
	if err := ds.CreditEarningsTx(tx, d.ID, 250); err != nil {
		t.Fatalf("credit earnings: %v", err)
	}
	prior, err := ds.ZeroEarningsTx(tx, d.ID)
	if err != nil {
		t.Fatalf("zero earnings: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if prior != 750 {
		t.Errorf("prior earnings = %d, want 750", prior)
	}
	got, _ := ds.GetByID(d.ID)
	if got.AccumulatedEarnings != 0 {
		t.Errorf("earnings = %d, want 0", got.AccumulatedEarnings)
	}
}

func TestDatasetListByCreator(t *testing.T) {
	ds, as := setupDatasetTestDB(t)

	a, _ := as.Create("a@example.com", testPasswordHash)
	b, _ := as.Create("b@example.com", testPasswordHash)
	ds.Create(a.ID, "quechua", "cusco", 60, "ns-1")
	ds.Create(a.ID, "quechua", "cusco", 30, "ns-2")
	ds.Create(b.ID, "aymara", "la-paz", 120, "ns-3")

	mine, err := ds.ListByCreator(a.ID)
	if err != nil {
		t.Fatalf("list by creator: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("got %d datasets, want 2", len(mine))
	}

	all, err := ds.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d datasets, want 3", len(all))
	}
}
