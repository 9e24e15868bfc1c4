package checkout

import "errors"

var (
	ErrNotLoaded    = errors.New("checkout is not loaded")
	ErrEmptyCart    = errors.New("nothing is held")
	ErrItemNotFound = errors.New("item is not held")
	ErrCartExpired  = errors.New("cart expired")
	ErrInvalidName  = errors.New("invalid full name")
	ErrInvalidPhone = errors.New("invalid phone")
)
