package model

import (
	"encoding/json"
	"time"
)

const (
	EventDatasetCreated        = "dataset_created"
	EventSubscriptionPurchased = "subscription_purchased"
)

// Event is an append-only marketplace event. The events table is the
// authoritative history feed for dashboards; rows are never updated.
type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	DatasetID int64           `json:"dataset_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type DatasetCreatedPayload struct {
	DatasetID int64  `json:"dataset_id"`
	CreatorID int64  `json:"creator_id"`
	Language  string `json:"language"`
	Dialect   string `json:"dialect"`
}

type SubscriptionPurchasedPayload struct {
	DatasetID       int64 `json:"dataset_id"`
	SubscriberID    int64 `json:"subscriber_id"`
	Amount          int64 `json:"amount"`
	DaysPurchased   int64 `json:"days_purchased"`
	DiscountApplied int64 `json:"discount_applied"`
}
