package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrNotFound        = errors.New("not found")
	ErrAuctionNotFound = fmt.Errorf("auction %w", ErrNotFound)
	ErrBidNotFound     = fmt.Errorf("bid %w", ErrNotFound)

	// ErrTransient marks storage failures (lost connection, serialization conflict)
	// that are safe to retry from scratch.
	ErrTransient = errors.New("transient storage failure")
)

// business logic errors
var (
	ErrInvalidBid             = errors.New("invalid bid")
	ErrAuctionNotActive       = errors.New("auction is not active")
	ErrAuctionEnded           = errors.New("auction has ended")
	ErrSelfBidForbidden       = errors.New("sellers cannot bid on or buy their own auction")
	ErrInsufficientReputation = errors.New("insufficient reputation")
	ErrBidTooLow              = errors.New("bid amount too low")
	ErrNoBuyNowOption         = errors.New("auction has no buy-now price")
	ErrUnauthorized           = errors.New("only the seller may perform this action")
)

// BidTooLowError carries the minimum acceptable ceiling
type BidTooLowError struct {
	Floor int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum acceptable bid is %d", ErrBidTooLow, e.Floor)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// ReputationError carries the bidder's positive rating share, when rated
type ReputationError struct {
	Rated   bool
	Percent float64
	Minimum float64
}

func (e *ReputationError) Error() string {
	if !e.Rated {
		return fmt.Sprintf("%s: this auction does not accept bidders without ratings", ErrInsufficientReputation)
	}
	return fmt.Sprintf("%s: positive rating %.1f%% is below the required %.1f%%", ErrInsufficientReputation, e.Percent, e.Minimum)
}

func (e *ReputationError) Unwrap() error { return ErrInsufficientReputation }
