package repositories

import "fmt"

// WalletErrorCode enumerates repository error causes for wallet operations.
type WalletErrorCode string

const (
	// WalletErrorUnknown represents an unspecified failure.
	WalletErrorUnknown WalletErrorCode = "wallet_unknown"
	// WalletErrorNotFound indicates no wallet document exists for the user.
	WalletErrorNotFound WalletErrorCode = "wallet_not_found"
	// WalletErrorInsufficientFunds indicates the debit would make the balance negative.
	WalletErrorInsufficientFunds WalletErrorCode = "wallet_insufficient_funds"
	// WalletErrorInvalidAmount indicates the requested amount is zero or negative.
	WalletErrorInvalidAmount WalletErrorCode = "wallet_invalid_amount"
	// WalletErrorConflict indicates a concurrent write invalidated the version read.
	WalletErrorConflict WalletErrorCode = "wallet_conflict"
)

// WalletError wraps wallet-specific failures with machine readable codes.
type WalletError struct {
	Op      string
	Code    WalletErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *WalletError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *WalletError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewWalletError constructs a typed wallet error.
func NewWalletError(code WalletErrorCode, message string, err error) *WalletError {
	if message == "" {
		message = string(code)
	}
	return &WalletError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
