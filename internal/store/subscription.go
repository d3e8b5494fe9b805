package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/speechvault/speechvault/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(sc scanner) (*model.Subscription, error) {
	var sub model.Subscription
	err := sc.Scan(
		&sub.ID, &sub.DatasetID, &sub.SubscriberAccountID, &sub.PurchaseID,
		&sub.DaysPurchased, &sub.PricePaid, &sub.DiscountApplied,
		&sub.ExpiresAt, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

const subscriptionCols = `id, dataset_id, subscriber_account_id, purchase_id, days_purchased, price_paid, discount_applied, expires_at, created_at`

// CreatePurchaseTx inserts the purchase grouping row for one payment.
func (s *SubscriptionStore) CreatePurchaseTx(tx *sql.Tx, buyerAccountID, totalPaid, totalDiscount, datasetCount int64) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO purchases (buyer_account_id, total_paid, total_discount, dataset_count)
		 VALUES (?, ?, ?, ?)`,
		buyerAccountID, totalPaid, totalDiscount, datasetCount,
	)
	if err != nil {
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// CreateTx inserts a subscription row inside the purchase transaction.
// Rows are immutable after this insert.
func (s *SubscriptionStore) CreateTx(tx *sql.Tx, datasetID, subscriberAccountID, purchaseID, days, pricePaid, discountApplied int64, expiresAt time.Time) (int64, error) {
	result, err := tx.Exec(
		`INSERT INTO subscriptions (dataset_id, subscriber_account_id, purchase_id, days_purchased, price_paid, discount_applied, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		datasetID, subscriberAccountID, purchaseID, days, pricePaid, discountApplied, expiresAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	row := s.db.QueryRow(`SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) ListBySubscriber(subscriberAccountID int64) ([]*model.Subscription, error) {
	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE subscriber_account_id = ? ORDER BY created_at DESC, id DESC`,
		subscriberAccountID,
	)
}

func (s *SubscriptionStore) ListByDataset(datasetID int64) ([]*model.Subscription, error) {
	return s.list(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE dataset_id = ? ORDER BY created_at DESC, id DESC`,
		datasetID,
	)
}

func (s *SubscriptionStore) GetPurchase(id int64) (*model.Purchase, error) {
	var p model.Purchase
	row := s.db.QueryRow(
		`SELECT id, buyer_account_id, total_paid, total_discount, dataset_count, created_at FROM purchases WHERE id = ?`,
		id,
	)
	err := row.Scan(&p.ID, &p.BuyerAccountID, &p.TotalPaid, &p.TotalDiscount, &p.DatasetCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return &p, nil
}

func (s *SubscriptionStore) list(query string, args ...any) ([]*model.Subscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
