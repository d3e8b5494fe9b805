package model

import "time"

type Account struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	BalanceMinor     int64     `json:"balance_minor"`
	StripeCustomerID *string   `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// LanguageCategory is a crowd-sourced taxonomy entry. The creator is the
// first registrant and never changes; dialects and sample texts only grow.
type LanguageCategory struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	CreatorAccountID int64     `json:"creator_account_id"`
	Dialects         []string  `json:"dialects"`
	SampleTexts      []string  `json:"sample_texts"`
	CreatedAt        time.Time `json:"created_at"`
}

type DatasetStatus string

const (
	// DatasetCreated: metadata registered, no content yet. Not purchasable.
	DatasetCreated DatasetStatus = "created"
	// DatasetPublished: encrypted content attached. One-way transition.
	DatasetPublished DatasetStatus = "published"
)

type Dataset struct {
	ID                  int64         `json:"id"`
	CreatorAccountID    int64         `json:"creator_account_id"`
	Language            string        `json:"language"`
	Dialect             string        `json:"dialect"`
	DurationSeconds     int64         `json:"duration_seconds"`
	Status              DatasetStatus `json:"status"`
	PolicyID            string        `json:"policy_id"`
	ContentRef          *string       `json:"content_ref,omitempty"`
	ContentKeyID        *string       `json:"content_key_id,omitempty"`
	AccumulatedEarnings int64         `json:"accumulated_earnings"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

// DatasetCap is the creator capability for one dataset. Possession of the
// token is the sole authorization factor for attach and withdraw.
type DatasetCap struct {
	ID        int64     `json:"id"`
	DatasetID int64     `json:"dataset_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription rows are immutable after insert. Expiry is computed on read;
// there is no background expiration job and no renewal-in-place.
type Subscription struct {
	ID                  int64     `json:"id"`
	DatasetID           int64     `json:"dataset_id"`
	SubscriberAccountID int64     `json:"subscriber_account_id"`
	PurchaseID          int64     `json:"purchase_id"`
	DaysPurchased       int64     `json:"days_purchased"`
	PricePaid           int64     `json:"price_paid"`
	DiscountApplied     int64     `json:"discount_applied"`
	ExpiresAt           time.Time `json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// Active reports whether the subscription still grants access at the given
// instant. Valid exactly through ExpiresAt, inclusive.
func (s *Subscription) Active(now time.Time) bool {
	return !now.After(s.ExpiresAt)
}

// Purchase groups the subscriptions minted by one payment. A bulk purchase
// carries several subscriptions sharing one expiry.
type Purchase struct {
	ID              int64     `json:"id"`
	BuyerAccountID  int64     `json:"buyer_account_id"`
	TotalPaid       int64     `json:"total_paid"`
	TotalDiscount   int64     `json:"total_discount"`
	DatasetCount    int64     `json:"dataset_count"`
	CreatedAt       time.Time `json:"created_at"`
}
