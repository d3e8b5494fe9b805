package entitlement

import (
	"testing"
	"time"

	"github.com/speechvault/speechvault/internal/model"
)

func baseDataset() *model.Dataset {
	ref := "sha256/abc"
	return &model.Dataset{
		ID:               7,
		CreatorAccountID: 1,
		Language:         "quechua",
		Dialect:          "cusco",
		DurationSeconds:  60,
		Status:           model.DatasetPublished,
		PolicyID:         "ns-dataset-7",
		ContentRef:       &ref,
	}
}

func baseSubscription(expiresAt time.Time) *model.Subscription {
	return &model.Subscription{
		ID:                  3,
		DatasetID:           7,
		SubscriberAccountID: 2,
		DaysPurchased:       7,
		ExpiresAt:           expiresAt,
	}
}

func TestAuthorizeHappyPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ds := baseDataset()
	sub := baseSubscription(now.Add(24 * time.Hour))

	if !Authorize(2, "ns-dataset-7/nonce-1", ds, sub, now) {
		t.Error("expected authorization for a valid subscription")
	}
}

func TestAuthorizeExpiryBoundary(t *testing.T) {
	expiry := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	ds := baseDataset()
	sub := baseSubscription(expiry)

	// Valid exactly at the expiry instant, permanently false after it.
	if !Authorize(2, "ns-dataset-7/n", ds, sub, expiry) {
		t.Error("expected authorization exactly at expires_at")
	}
	if Authorize(2, "ns-dataset-7/n", ds, sub, expiry.Add(time.Nanosecond)) {
		t.Error("expected denial one instant after expires_at")
	}
	if Authorize(2, "ns-dataset-7/n", ds, sub, expiry.Add(48*time.Hour)) {
		t.Error("expected denial well after expires_at")
	}
}

func TestAuthorizeWrongSubscriber(t *testing.T) {
	now := time.Now().UTC()
	ds := baseDataset()
	sub := baseSubscription(now.Add(time.Hour))

	if Authorize(99, "ns-dataset-7/n", ds, sub, now) {
		t.Error("expected denial for a caller who does not own the subscription")
	}
}

func TestAuthorizeWrongDataset(t *testing.T) {
	now := time.Now().UTC()
	ds := baseDataset()
	sub := baseSubscription(now.Add(time.Hour))
	sub.DatasetID = 8

	if Authorize(2, "ns-dataset-7/n", ds, sub, now) {
		t.Error("expected denial when subscription references another dataset")
	}
}

func TestAuthorizePrefixBinding(t *testing.T) {
	now := time.Now().UTC()
	ds := baseDataset()
	sub := baseSubscription(now.Add(time.Hour))

	// Valid, unexpired, correctly-owned subscription — but the requested
	// policy id belongs to another dataset's namespace.
	if Authorize(2, "ns-dataset-8/nonce-1", ds, sub, now) {
		t.Error("expected denial for a foreign policy namespace")
	}
	if Authorize(2, "", ds, sub, now) {
		t.Error("expected denial for an empty policy id")
	}
	if !Authorize(2, "ns-dataset-7", ds, sub, now) {
		t.Error("expected authorization for the bare namespace itself")
	}
}

func TestAuthorizeUnpublishedDataset(t *testing.T) {
	now := time.Now().UTC()
	ds := baseDataset()
	ds.Status = model.DatasetCreated
	ds.ContentRef = nil
	sub := baseSubscription(now.Add(time.Hour))

	if Authorize(2, "ns-dataset-7/n", ds, sub, now) {
		t.Error("expected denial for a dataset without content")
	}
}

func TestAuthorizeNilInputsFailClosed(t *testing.T) {
	now := time.Now().UTC()
	ds := baseDataset()
	sub := baseSubscription(now.Add(time.Hour))

	if Authorize(2, "ns-dataset-7/n", nil, sub, now) {
		t.Error("expected denial for nil dataset")
	}
	if Authorize(2, "ns-dataset-7/n", ds, nil, now) {
		t.Error("expected denial for nil subscription")
	}
}
