package credits

import (
	"context"
	"fmt"
	"time"
)

// Service contains the ledger domain logic over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// EnsureAccount provisions a zero-balance account if one does not exist.
func (service *Service) EnsureAccount(ctx context.Context, userID UserID) error {
	return service.store.EnsureAccount(ctx, userID)
}

// Balance returns the current balance and running totals for a user.
func (service *Service) Balance(ctx context.Context, userID UserID) (Balance, error) {
	account, err := service.store.GetAccount(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		Credits:            account.Credits,
		TotalCreditsEarned: account.TotalCreditsEarned,
		TotalCreditsSpent:  account.TotalCreditsSpent,
	}, nil
}

// History lists the user's transaction log entries, newest first.
func (service *Service) History(ctx context.Context, userID UserID, limit int, offset int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := service.store.GetAccount(ctx, userID); err != nil {
		return nil, err
	}
	return service.store.ListTransactions(ctx, userID, limit, offset)
}

// CreditTransaction executes one atomic ledger transaction: balance
// read-modify-write plus a log append, committed together or not at all.
// amount is a magnitude for earn/spend/refund; for admin_adjust it is signed.
func (service *Service) CreditTransaction(ctx context.Context, userID UserID, transactionType TransactionType, amount int64, description string, reference *Reference) (TransactionResult, error) {
	result, operationError := service.runTransaction(ctx, userID, transactionType, amount, description, reference)
	service.logOperation(ctx, OperationLog{
		Operation:       operationTransaction,
		TransactionType: transactionType,
		UserID:          userID,
		Amount:          result.Amount,
		Reference:       reference,
		Error:           operationError,
	})
	return result, operationError
}

// runTransaction owns the WithTx boundary around applyTransaction. Operations
// that wrap the ledger under their own name log through this instead of
// CreditTransaction, so each shows up once under its own operation.
func (service *Service) runTransaction(ctx context.Context, userID UserID, transactionType TransactionType, amount int64, description string, reference *Reference) (TransactionResult, error) {
	var result TransactionResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		applied, err := service.applyTransaction(ctx, transactionStore, userID, transactionType, amount, description, reference)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	return result, operationError
}

// applyTransaction runs the transaction steps against an already
// transaction-scoped store. Callers own the WithTx boundary; nothing here
// opens a nested transaction.
func (service *Service) applyTransaction(ctx context.Context, transactionStore Store, userID UserID, transactionType TransactionType, amount int64, description string, reference *Reference) (TransactionResult, error) {
	account, err := transactionStore.GetAccountForUpdate(ctx, userID)
	if err != nil {
		return TransactionResult{}, err
	}

	signedAmount, err := signAmount(transactionType, amount, account.Credits)
	if err != nil {
		return TransactionResult{}, err
	}

	previousBalance := account.Credits
	newBalance := previousBalance + signedAmount
	if newBalance < 0 {
		// Spends are guarded in signAmount; this catches negative
		// admin adjustments that overdraw the account.
		return TransactionResult{}, WrapError(operationTransaction, "balance", "negative", ErrNegativeBalance)
	}
	account.Credits = newBalance
	if signedAmount >= 0 {
		account.TotalCreditsEarned += signedAmount
	} else {
		account.TotalCreditsSpent += -signedAmount
	}
	if err := transactionStore.UpdateAccountBalance(ctx, account); err != nil {
		return TransactionResult{}, err
	}

	entryID, err := transactionStore.InsertTransaction(ctx, TransactionRecord{
		UserID:       userID.String(),
		Type:         transactionType,
		Amount:       signedAmount,
		BalanceAfter: newBalance,
		Description:  description,
		Reference:    reference,
		CreatedAt:    service.nowFn(),
	})
	if err != nil {
		return TransactionResult{}, err
	}

	return TransactionResult{
		EntryID:         entryID,
		PreviousBalance: previousBalance,
		NewBalance:      newBalance,
		Amount:          signedAmount,
	}, nil
}

// signAmount derives the signed transaction amount from the type, rejecting
// spends the balance cannot cover.
func signAmount(transactionType TransactionType, amount int64, currentCredits int64) (int64, error) {
	switch transactionType {
	case TransactionEarn, TransactionRefund:
		if amount <= 0 {
			return 0, fmt.Errorf("%w: %s amount must be positive", ErrInvalidAmount, transactionType)
		}
		return amount, nil
	case TransactionSpend:
		if amount <= 0 {
			return 0, fmt.Errorf("%w: spend amount must be positive", ErrInvalidAmount)
		}
		if currentCredits < amount {
			return 0, InsufficientBalanceError{Required: amount, Available: currentCredits}
		}
		return -amount, nil
	case TransactionAdminAdjust:
		if amount == 0 {
			return 0, fmt.Errorf("%w: adjustment amount must be non-zero", ErrInvalidAmount)
		}
		return amount, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTransactionType, transactionType)
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
