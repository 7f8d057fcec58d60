package repositories

import "fmt"

// FulfillmentErrorCode enumerates repository error causes for the
// transactional order workflows.
type FulfillmentErrorCode string

const (
	// FulfillmentErrorUnknown represents an unspecified failure.
	FulfillmentErrorUnknown FulfillmentErrorCode = "fulfillment_unknown"
	// FulfillmentErrorEmptyCart indicates checkout was requested with no cart lines.
	FulfillmentErrorEmptyCart FulfillmentErrorCode = "fulfillment_empty_cart"
	// FulfillmentErrorProductUnavailable indicates a referenced product is missing or delisted.
	FulfillmentErrorProductUnavailable FulfillmentErrorCode = "fulfillment_product_unavailable"
	// FulfillmentErrorInsufficientStock indicates a requested quantity exceeds availability.
	FulfillmentErrorInsufficientStock FulfillmentErrorCode = "fulfillment_insufficient_stock"
	// FulfillmentErrorInsufficientFunds indicates the wallet balance cannot cover the total.
	FulfillmentErrorInsufficientFunds FulfillmentErrorCode = "fulfillment_insufficient_funds"
	// FulfillmentErrorWalletNotFound indicates the user has no wallet document.
	FulfillmentErrorWalletNotFound FulfillmentErrorCode = "fulfillment_wallet_not_found"
	// FulfillmentErrorOrderNotFound indicates the order document is missing.
	FulfillmentErrorOrderNotFound FulfillmentErrorCode = "fulfillment_order_not_found"
	// FulfillmentErrorInvalidTransition indicates the requested status change is not legal.
	FulfillmentErrorInvalidTransition FulfillmentErrorCode = "fulfillment_invalid_transition"
	// FulfillmentErrorConflict indicates the expected version no longer matches the stored order.
	FulfillmentErrorConflict FulfillmentErrorCode = "fulfillment_conflict"
	// FulfillmentErrorNotCustomOrder indicates a quote update targeted a regular order.
	FulfillmentErrorNotCustomOrder FulfillmentErrorCode = "fulfillment_not_custom_order"
)

// FulfillmentError wraps coordinator failures with machine readable codes.
type FulfillmentError struct {
	Op      string
	Code    FulfillmentErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *FulfillmentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *FulfillmentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewFulfillmentError constructs a typed fulfillment error.
func NewFulfillmentError(code FulfillmentErrorCode, message string, err error) *FulfillmentError {
	if message == "" {
		message = string(code)
	}
	return &FulfillmentError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
