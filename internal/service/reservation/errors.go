package reservation

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotOpened         = errors.New("no event is open")
	ErrEventNotFound     = errors.New("session not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrTariffNotFound    = errors.New("tariff not found")
	ErrTariffRequired    = errors.New("category is sold by tariff")
	ErrNoTariffs         = errors.New("category has no tariffs")
	ErrNothingSelectable = errors.New("no more tickets can be selected")
	ErrDraftNotOpen      = errors.New("no tariff draft is open for this category")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrCommitInProgress  = errors.New("commit already in progress")
	ErrAuthRequired      = errors.New("authentication required")
	ErrStaleCommit       = errors.New("cart was cleared while the commit was in flight")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrNoSeatMap         = errors.New("event has no seat map")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}
