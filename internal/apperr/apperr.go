// Package apperr defines the error taxonomy shared by the engine.
//
// Callers branch on the Kind of an error rather than on its message:
//
//	switch apperr.KindOf(err) {
//	case apperr.InsufficientStock:
//	        // offer a substitute
//	case apperr.AlreadyPaid:
//	        // nothing to do, another terminal won the race
//	}
//
// Concrete failures wrap one of the sentinels below with fmt.Errorf("%w: ..."),
// so errors.Is against a sentinel also works.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for callers that must branch on it.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	InvalidTransition
	InsufficientStock
	AlreadyFinal
	AlreadyPaid
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case InvalidTransition:
		return "invalid_transition"
	case InsufficientStock:
		return "insufficient_stock"
	case AlreadyFinal:
		return "already_final"
	case AlreadyPaid:
		return "already_paid"
	default:
		return "internal"
	}
}

// Error is a classified sentinel error.
type Error struct {
	kind Kind
	msg  string
}

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the classification of the error.
func (e *Error) Kind() Kind { return e.kind }

var (
	ErrInvalidQuantity    = newError(InvalidInput, "quantity must be at least 1")
	ErrInvalidDiscount    = newError(InvalidInput, "discount must be between zero and the subtotal")
	ErrInvalidPrice       = newError(InvalidInput, "unit price cannot be negative")
	ErrInvalidPartCount   = newError(InvalidInput, "invalid number of parts")
	ErrInvalidShareCount  = newError(InvalidInput, "share count must be at least 1")
	ErrEmptyOrder         = newError(InvalidInput, "order total must be greater than zero")
	ErrZeroAmount         = newError(InvalidInput, "part amount is zero")
	ErrMissingReason      = newError(InvalidInput, "a reason is required")
	ErrInvalidPayment     = newError(InvalidInput, "payment method is required")
	ErrMissingTable       = newError(InvalidInput, "table id is required")
	ErrOrderNotFound      = newError(NotFound, "order not found")
	ErrLineNotFound       = newError(NotFound, "line not found")
	ErrPartNotFound       = newError(NotFound, "part not found")
	ErrSplitNotFound      = newError(NotFound, "split not found")
	ErrProductNotFound    = newError(NotFound, "product not found")
	ErrIngredientNotFound = newError(NotFound, "ingredient not found")
	ErrInvalidTransition  = newError(InvalidTransition, "invalid status transition")
	ErrOrderClosed        = newError(InvalidTransition, "order is no longer open")
	ErrUnservedItems      = newError(InvalidTransition, "order has unserved items")
	ErrOrderNotCompleted  = newError(InvalidTransition, "order is not completed")
	ErrLineAlreadyFinal   = newError(AlreadyFinal, "line is already served or cancelled")
	ErrAlreadyPaid        = newError(AlreadyPaid, "part is already paid")
	ErrInsufficientStock  = newError(InsufficientStock, "insufficient stock")
)

// InsufficientStockError names the ingredient that blocked a consumption.
type InsufficientStockError struct {
	IngredientID string
	Needed       decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %s: needed %s, available %s",
		e.IngredientID, e.Needed, e.Available)
}

// Kind returns InsufficientStock.
func (e *InsufficientStockError) Kind() Kind { return InsufficientStock }

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Deficit is how much more stock the consumption needed.
func (e *InsufficientStockError) Deficit() decimal.Decimal {
	return e.Needed.Sub(e.Available)
}

type kinded interface {
	Kind() Kind
}

// KindOf returns the Kind of the first classified error in err's chain,
// or Internal when none is classified.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Internal
}
