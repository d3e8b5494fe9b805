package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/speechvault/speechvault/internal/database"
)

func setupSubscriptionTestDB(t *testing.T) (*SubscriptionStore, *DatasetStore, *AccountStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSubscriptionStore(db), NewDatasetStore(db), NewAccountStore(db), db
}

func TestSubscriptionCreateAndGet(t *testing.T) {
	ss, ds, as, db := setupSubscriptionTestDB(t)

	creator, _ := as.Create("creator@example.com", testPasswordHash)
	buyer, _ := as.Create("buyer@example.com", testPasswordHash)
	d, _, _ := ds.Create(creator.ID, "quechua", "cusco", 60, "ns-1")

	expiresAt := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	purchaseID, err := ss.CreatePurchaseTx(tx, buyer.ID, 14_000_000, 0, 1)
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	subID, err := ss.CreateTx(tx, d.ID, buyer.ID, purchaseID, 7, 14_000_000, 0, expiresAt)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	sub, err := ss.GetByID(subID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if sub == nil {
		t.Fatal("expected subscription, got nil")
	}
	if sub.DatasetID != d.ID || sub.SubscriberAccountID != buyer.ID {
		t.Errorf("subscription refs = (%d,%d), want (%d,%d)", sub.DatasetID, sub.SubscriberAccountID, d.ID, buyer.ID)
	}
	if !sub.ExpiresAt.Equal(expiresAt) {
		t.Errorf("expires_at = %v, want %v", sub.ExpiresAt, expiresAt)
	}
	if sub.DaysPurchased != 7 {
		t.Errorf("days = %d, want 7", sub.DaysPurchased)
	}
}

func TestSubscriptionGetByIDNotFound(t *testing.T) {
	ss, _, _, _ := setupSubscriptionTestDB(t)

	sub, err := ss.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if sub != nil {
		t.Error("expected nil for nonexistent id")
	}
}

func TestSubscriptionListBySubscriber(t *testing.T) {
	ss, ds, as, db := setupSubscriptionTestDB(t)

	creator, _ := as.Create("creator@example.com", testPasswordHash)
	buyer, _ := as.Create("buyer@example.com", testPasswordHash)
	d1, _, _ := ds.Create(creator.ID, "quechua", "cusco", 60, "ns-1")
	d2, _, _ := ds.Create(creator.ID, "quechua", "cusco", 30, "ns-2")

	expiresAt := time.Now().UTC().Add(7 * 24 * time.Hour)
	tx, _ := db.Begin()
	purchaseID, _ := ss.CreatePurchaseTx(tx, buyer.ID, 21_000_000, 0, 2)
	ss.CreateTx(tx, d1.ID, buyer.ID, purchaseID, 7, 14_000_000, 0, expiresAt)
	ss.CreateTx(tx, d2.ID, buyer.ID, purchaseID, 7, 7_000_000, 0, expiresAt)
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	subs, err := ss.ListBySubscriber(buyer.ID)
	if err != nil {
		t.Fatalf("list by subscriber: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}

	byDataset, err := ss.ListByDataset(d1.ID)
	if err != nil {
		t.Fatalf("list by dataset: %v", err)
	}
	if len(byDataset) != 1 {
		t.Errorf("got %d subscriptions for dataset, want 1", len(byDataset))
	}

	p, err := ss.GetPurchase(purchaseID)
	if err != nil {
		t.Fatalf("get purchase: %v", err)
	}
	if p == nil || p.DatasetCount != 2 {
		t.Errorf("purchase = %+v, want dataset_count 2", p)
	}
}
