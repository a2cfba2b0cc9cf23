package pairing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Directory for an unknown user id.
	ErrNotFound = errors.New("user not found")

	ErrAlreadyPaired      = errors.New("user is already paired")
	ErrPartnerUnavailable = errors.New("partner is no longer available")
	ErrNotPaired          = errors.New("user has no active partner")
	ErrNoActivePair       = fmt.Errorf("no active pair: %w", ErrNotPaired)
	ErrDeliveryFailed     = errors.New("delivery failed")

	ErrNoPartners        = errors.New("no partners available")
	ErrProfileIncomplete = errors.New("profile is incomplete")
	ErrUserBlocked       = errors.New("user is blocked")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrSelfPair          = errors.New("cannot pair a user with themselves")
)
