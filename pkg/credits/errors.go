package credits

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the credits service.
var (
	ErrUserNotFound           = errors.New("user account not found")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNegativeBalance        = errors.New("negative balance")
	ErrDuplicatePremium       = errors.New("active premium placement exists")
	ErrContentNotFound        = errors.New("content not found or not owned")
	ErrSettingNotFound        = errors.New("setting not found")
	ErrInvalidSetting         = errors.New("invalid setting value")
	ErrInvalidUserID          = errors.New("invalid user id")
	ErrInvalidPostKind        = errors.New("invalid post kind")
	ErrInvalidPremiumType     = errors.New("invalid premium type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrUnknownRechargeAmount  = errors.New("unknown recharge amount")
	ErrInvalidServiceConfig   = errors.New("invalid service config")
)

// InsufficientBalanceError carries the shortfall so callers can prompt a
// recharge. errors.Is(err, ErrInsufficientBalance) matches it.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

// Error returns the formatted error message.
func (insufficientError InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%v: need %d, have %d", ErrInsufficientBalance, insufficientError.Required, insufficientError.Available)
}

// Is matches the ErrInsufficientBalance sentinel.
func (insufficientError InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// Shortfall is the amount missing to cover the attempted spend.
func (insufficientError InsufficientBalanceError) Shortfall() int64 {
	return insufficientError.Required - insufficientError.Available
}

// DuplicatePremiumError reports which tier is already live on the item.
type DuplicatePremiumError struct {
	PostKind    PostKind
	PostID      int64
	PremiumType PremiumType
}

// Error returns the formatted error message.
func (duplicateError DuplicatePremiumError) Error() string {
	return fmt.Sprintf("%v: %s already active on %s %d", ErrDuplicatePremium, duplicateError.PremiumType, duplicateError.PostKind, duplicateError.PostID)
}

// Is matches the ErrDuplicatePremium sentinel.
func (duplicateError DuplicatePremiumError) Is(target error) bool {
	return target == ErrDuplicatePremium
}

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
