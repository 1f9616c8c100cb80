package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrProductNotFound     = errors.New("product not found")
	ErrNegotiationNotFound = errors.New("negotiation not found")
	ErrLockConflict        = errors.New("product is locked by another negotiation")
	ErrNotHolder           = errors.New("caller does not hold the lock")
	ErrInvalidTransition   = errors.New("invalid negotiation state transition")
	ErrBidTooLow           = errors.New("bid amount must be positive")
	ErrBidNotAllowed       = errors.New("bid not allowed")
	ErrUnauthorized        = errors.New("caller is not a party to the negotiation")
	ErrRateLimited         = errors.New("rate limited")
)
