package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for the two data sources feeding the card.
var (
	ErrProfileFetch   = errors.New("profile fetch failed")
	ErrPresenceStream = errors.New("presence stream failed")
	ErrNotFound       = errors.New("requested resource not found")
	ErrNotConnected   = errors.New("presence feed is not connected")
)
