package entitlement

import "errors"

var (
	ErrDatasetNotFound     = errors.New("entitlement: dataset not found")
	ErrNotPublished        = errors.New("entitlement: dataset has no content attached")
	ErrAlreadyAttached     = errors.New("entitlement: content already attached")
	ErrInvalidCap          = errors.New("entitlement: capability does not match dataset")
	ErrInvalidPayment      = errors.New("entitlement: payment must equal the quoted net price exactly")
	ErrOwnContent          = errors.New("entitlement: creators cannot subscribe to their own dataset")
	ErrInvalidDuration     = errors.New("entitlement: duration is not an offered content length")
	ErrInsufficientBalance = errors.New("entitlement: wallet balance too low")
	ErrPolicyIDTaken       = errors.New("entitlement: policy id already in use")
	ErrNoDatasets          = errors.New("entitlement: bulk purchase needs at least one dataset")
)
