package entitlement

import (
	"strings"
	"time"

	"github.com/speechvault/speechvault/internal/model"
)

// Authorize decides whether a decryption key derived under policyID may be
// released to the caller. It is the single chokepoint for content access:
// the sealing service calls it before handing out any key material.
//
// Pure predicate over already-fetched state. It never mutates anything and
// never returns an error: every failure mode, including nil inputs,
// collapses to false so that an unauthorized caller learns nothing about
// why access was refused.
func Authorize(callerAccountID int64, policyID string, ds *model.Dataset, sub *model.Subscription, now time.Time) bool {
	if ds == nil || sub == nil || policyID == "" {
		return false
	}
	if sub.DatasetID != ds.ID {
		return false
	}
	if sub.SubscriberAccountID != callerAccountID {
		return false
	}
	// Expiry is checked here, at every authorization, not by any scheduled
	// job. A subscription is valid through ExpiresAt inclusive.
	if !sub.Active(now) {
		return false
	}
	if ds.Status != model.DatasetPublished {
		return false
	}
	// The requested policy identifier is the dataset namespace plus a
	// per-encryption nonce. The prefix check binds the key request to this
	// dataset and blocks cross-dataset key reuse.
	return strings.HasPrefix(policyID, ds.PolicyID)
}
