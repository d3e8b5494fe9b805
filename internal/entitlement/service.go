// Package entitlement mints subscriptions against wallet payments and
// authorizes decryption-key release. Each public operation is one SQL
// transaction: it fully applies or fully fails.
package entitlement

import (
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/speechvault/speechvault/internal/catalog"
	"github.com/speechvault/speechvault/internal/model"
	"github.com/speechvault/speechvault/internal/pricing"
	"github.com/speechvault/speechvault/internal/store"
)

// DefaultDurations are the content lengths offered at publish time.
var DefaultDurations = []int64{30, 60, 120, 300}

// Notifier receives committed marketplace events, e.g. for websocket fanout.
type Notifier func(*model.Event)

type Service struct {
	db            *sql.DB
	datasets      *store.DatasetStore
	subscriptions *store.SubscriptionStore
	accounts      *store.AccountStore
	events        *store.EventStore
	catalog       *catalog.Service
	pricing       pricing.Config
	durations     []int64
	notify        Notifier
	logger        *slog.Logger
}

type Config struct {
	Pricing pricing.Config
	// Durations overrides DefaultDurations when non-empty.
	Durations []int64
	Notify    Notifier
}

func NewService(
	db *sql.DB,
	datasets *store.DatasetStore,
	subscriptions *store.SubscriptionStore,
	accounts *store.AccountStore,
	events *store.EventStore,
	cat *catalog.Service,
	cfg Config,
	logger *slog.Logger,
) *Service {
	durations := cfg.Durations
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	return &Service{
		db:            db,
		datasets:      datasets,
		subscriptions: subscriptions,
		accounts:      accounts,
		events:        events,
		catalog:       cat,
		pricing:       cfg.Pricing,
		durations:     durations,
		notify:        cfg.Notify,
		logger:        logger,
	}
}

// Pricing returns the active pricing configuration, for quote endpoints.
func (s *Service) Pricing() pricing.Config {
	return s.pricing
}

// CreateDataset is phase one of publishing: it registers the metadata and
// mints the creator capability. Content is attached separately once the
// encrypted blob upload has produced a reference.
//
// policyID becomes the dataset's policy namespace; pass "" to have one
// assigned. It is set exactly once and never reused across datasets.
func (s *Service) CreateDataset(creatorAccountID int64, language, dialect string, durationSeconds int64, policyID string) (*model.Dataset, *model.DatasetCap, error) {
	if err := s.catalog.Validate(language, dialect); err != nil {
		return nil, nil, err
	}
	if !slices.Contains(s.durations, durationSeconds) {
		return nil, nil, ErrInvalidDuration
	}
	if policyID == "" {
		policyID = uuid.NewString()
	}

	ds, cap, err := s.datasets.Create(creatorAccountID, language, dialect, durationSeconds, policyID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, nil, ErrPolicyIDTaken
		}
		return nil, nil, fmt.Errorf("create dataset: %w", err)
	}

	ev, err := s.events.Append(model.EventDatasetCreated, ds.ID, model.DatasetCreatedPayload{
		DatasetID: ds.ID,
		CreatorID: creatorAccountID,
		Language:  language,
		Dialect:   dialect,
	})
	if err != nil {
		s.logger.Error("append dataset_created event", "dataset_id", ds.ID, "error", err)
	} else if s.notify != nil {
		s.notify(ev)
	}

	return ds, cap, nil
}

// AttachContent is phase two of publishing. The capability is the sole
// authorization factor; there is no creator ACL to consult. Attaching twice
// fails rather than silently replacing content that buyers already paid for.
func (s *Service) AttachContent(datasetID int64, capToken, contentRef, contentKeyID string) error {
	if contentRef == "" {
		return fmt.Errorf("attach content: empty content ref")
	}
	if contentKeyID == "" {
		return fmt.Errorf("attach content: empty content key id")
	}

	cap, err := s.datasets.GetCap(capToken)
	if err != nil {
		return fmt.Errorf("resolve cap: %w", err)
	}
	if cap == nil || cap.DatasetID != datasetID {
		return ErrInvalidCap
	}

	ds, err := s.datasets.GetByID(datasetID)
	if err != nil {
		return fmt.Errorf("get dataset: %w", err)
	}
	if ds == nil {
		return ErrDatasetNotFound
	}
	// The encryption key must live under this dataset's policy namespace,
	// otherwise subscription checks would authorize the wrong content.
	if !strings.HasPrefix(contentKeyID, ds.PolicyID+"/") {
		return fmt.Errorf("attach content: key id outside dataset policy namespace")
	}

	ok, err := s.datasets.AttachContent(datasetID, contentRef, contentKeyID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyAttached
	}
	return nil
}

// Subscribe mints a subscription against an exact wallet payment. The
// debit, the earnings credit, the subscription row and the purchase event
// commit together or not at all.
func (s *Service) Subscribe(buyerAccountID, datasetID, days, paymentAmount int64, now time.Time) (*model.Subscription, error) {
	ds, net, discount, err := s.priceDataset(buyerAccountID, datasetID, days)
	if err != nil {
		return nil, err
	}
	if paymentAmount != net {
		return nil, ErrInvalidPayment
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ok, err := s.accounts.DebitTx(tx, buyerAccountID, net)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}
	if err := s.datasets.CreditEarningsTx(tx, ds.ID, net); err != nil {
		return nil, err
	}

	purchaseID, err := s.subscriptions.CreatePurchaseTx(tx, buyerAccountID, net, discount, 1)
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
	subID, err := s.subscriptions.CreateTx(tx, ds.ID, buyerAccountID, purchaseID, days, net, discount, expiresAt)
	if err != nil {
		return nil, err
	}

	ev, err := s.events.AppendTx(tx, model.EventSubscriptionPurchased, ds.ID, model.SubscriptionPurchasedPayload{
		DatasetID:       ds.ID,
		SubscriberID:    buyerAccountID,
		Amount:          net,
		DaysPurchased:   days,
		DiscountApplied: discount,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if s.notify != nil {
		s.notify(ev)
	}

	return s.subscriptions.GetByID(subID)
}

// SubscribeBulk mints one subscription per dataset, all sharing a single
// expiry and a single payment. Any per-dataset failure aborts the whole
// purchase.
func (s *Service) SubscribeBulk(buyerAccountID int64, datasetIDs []int64, days, paymentAmount int64, now time.Time) ([]*model.Subscription, error) {
	if len(datasetIDs) == 0 {
		return nil, ErrNoDatasets
	}

	type priced struct {
		ds            *model.Dataset
		net, discount int64
	}
	items := make([]priced, 0, len(datasetIDs))
	var totalNet, totalDiscount int64
	for _, id := range datasetIDs {
		ds, net, discount, err := s.priceDataset(buyerAccountID, id, days)
		if err != nil {
			return nil, err
		}
		items = append(items, priced{ds: ds, net: net, discount: discount})
		totalNet += net
		totalDiscount += discount
	}
	if paymentAmount != totalNet {
		return nil, ErrInvalidPayment
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ok, err := s.accounts.DebitTx(tx, buyerAccountID, totalNet)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInsufficientBalance
	}

	purchaseID, err := s.subscriptions.CreatePurchaseTx(tx, buyerAccountID, totalNet, totalDiscount, int64(len(items)))
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)
	subIDs := make([]int64, 0, len(items))
	committed := make([]*model.Event, 0, len(items))
	for _, it := range items {
		if err := s.datasets.CreditEarningsTx(tx, it.ds.ID, it.net); err != nil {
			return nil, err
		}
		subID, err := s.subscriptions.CreateTx(tx, it.ds.ID, buyerAccountID, purchaseID, days, it.net, it.discount, expiresAt)
		if err != nil {
			return nil, err
		}
		subIDs = append(subIDs, subID)

		ev, err := s.events.AppendTx(tx, model.EventSubscriptionPurchased, it.ds.ID, model.SubscriptionPurchasedPayload{
			DatasetID:       it.ds.ID,
			SubscriberID:    buyerAccountID,
			Amount:          it.net,
			DaysPurchased:   days,
			DiscountApplied: it.discount,
		})
		if err != nil {
			return nil, err
		}
		committed = append(committed, ev)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if s.notify != nil {
		for _, ev := range committed {
			s.notify(ev)
		}
	}

	subs := make([]*model.Subscription, 0, len(subIDs))
	for _, id := range subIDs {
		sub, err := s.subscriptions.GetByID(id)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// priceDataset loads a dataset and quotes it for the buyer, enforcing the
// purchasability rules shared by single and bulk subscribe.
func (s *Service) priceDataset(buyerAccountID, datasetID, days int64) (*model.Dataset, int64, int64, error) {
	ds, err := s.datasets.GetByID(datasetID)
	if err != nil {
		return nil, 0, 0, err
	}
	if ds == nil {
		return nil, 0, 0, ErrDatasetNotFound
	}
	if ds.Status != model.DatasetPublished {
		return nil, 0, 0, ErrNotPublished
	}
	if buyerAccountID == ds.CreatorAccountID {
		return nil, 0, 0, ErrOwnContent
	}

	isCreator, err := s.catalog.IsCreator(ds.Language, buyerAccountID)
	if err != nil {
		return nil, 0, 0, err
	}
	q, err := s.pricing.Quote(ds.DurationSeconds, days, isCreator)
	if err != nil {
		// Every pricing failure (bad days, bound exceeded, overflow) is a
		// rejected request, never a server fault.
		return nil, 0, 0, ErrInvalidDuration
	}
	return ds, q.Net, q.Discount, nil
}

// Quote prices a prospective subscription without mutating anything. It
// runs the same arithmetic as Subscribe, so preview and charge agree.
func (s *Service) Quote(buyerAccountID, datasetID, days int64) (pricing.Quote, error) {
	ds, err := s.datasets.GetByID(datasetID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if ds == nil {
		return pricing.Quote{}, ErrDatasetNotFound
	}
	isCreator, err := s.catalog.IsCreator(ds.Language, buyerAccountID)
	if err != nil {
		return pricing.Quote{}, err
	}
	q, err := s.pricing.Quote(ds.DurationSeconds, days, isCreator)
	if err != nil {
		return pricing.Quote{}, ErrInvalidDuration
	}
	return q, nil
}

// Withdraw zeroes the dataset's accumulated earnings and credits them to
// the creator's wallet. No partial withdrawal.
func (s *Service) Withdraw(datasetID int64, capToken string) (int64, error) {
	cap, err := s.datasets.GetCap(capToken)
	if err != nil {
		return 0, fmt.Errorf("resolve cap: %w", err)
	}
	if cap == nil || cap.DatasetID != datasetID {
		return 0, ErrInvalidCap
	}

	ds, err := s.datasets.GetByID(datasetID)
	if err != nil {
		return 0, err
	}
	if ds == nil {
		return 0, ErrDatasetNotFound
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	amount, err := s.datasets.ZeroEarningsTx(tx, datasetID)
	if err != nil {
		return 0, err
	}
	if amount > 0 {
		if err := s.accounts.CreditTx(tx, ds.CreatorAccountID, amount); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return amount, nil
}

// AuthorizeByID fetches the dataset and subscription and evaluates the
// Authorize predicate. Lookup misses and store errors fail closed.
func (s *Service) AuthorizeByID(callerAccountID int64, policyID string, datasetID, subscriptionID int64, now time.Time) bool {
	ds, err := s.datasets.GetByID(datasetID)
	if err != nil {
		s.logger.Error("authorize: get dataset", "dataset_id", datasetID, "error", err)
		return false
	}
	sub, err := s.subscriptions.GetByID(subscriptionID)
	if err != nil {
		s.logger.Error("authorize: get subscription", "subscription_id", subscriptionID, "error", err)
		return false
	}
	return Authorize(callerAccountID, policyID, ds, sub, now)
}
