package credits

import (
	"context"
	"fmt"
	"strconv"
)

// PostCost returns the configured posting cost for a content kind. Callers
// use it for the advisory balance pre-check; the charge itself re-reads it.
func (service *Service) PostCost(ctx context.Context, kind PostKind) (int64, error) {
	setting, err := service.store.GetSetting(ctx, settingKeyPostCostPrefix+kind.String())
	if err != nil {
		return 0, err
	}
	return setting.Credits()
}

// ChargeForPost debits the configured cost for posting one content item and
// tags the log entry with the item's kind and id. A missing cost key aborts;
// it is never treated as a zero cost.
func (service *Service) ChargeForPost(ctx context.Context, userID UserID, kind PostKind, postID int64) (ChargeResult, error) {
	var result ChargeResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		setting, err := transactionStore.GetSetting(ctx, settingKeyPostCostPrefix+kind.String())
		if err != nil {
			return err
		}
		cost, err := setting.Credits()
		if err != nil {
			return err
		}
		applied, err := service.applyTransaction(ctx, transactionStore, userID, TransactionSpend, cost,
			fmt.Sprintf("Posting fee: %s", kind), &Reference{Kind: kind.String(), ID: postID})
		if err != nil {
			return err
		}
		result = ChargeResult{
			PreviousBalance: applied.PreviousBalance,
			NewBalance:      applied.NewBalance,
			Cost:            cost,
			PostKind:        kind,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationCharge,
		TransactionType: TransactionSpend,
		UserID:          userID,
		PostKind:        kind,
		PostID:          postID,
		Amount:          -result.Cost,
		Error:           operationError,
	})
	return result, operationError
}

// Recharge grants credits for a paid amount using the configured rate table.
// There is no payment processor behind this; the gateway callback is expected
// to have verified the payment before calling.
func (service *Service) Recharge(ctx context.Context, userID UserID, paidAmount int64) (TransactionResult, error) {
	result, operationError := service.rechargeGrant(ctx, userID, paidAmount)
	service.logOperation(ctx, OperationLog{
		Operation:       operationRecharge,
		TransactionType: TransactionEarn,
		UserID:          userID,
		Amount:          result.Amount,
		Reference:       &Reference{Kind: referenceKindRecharge, ID: paidAmount},
		Error:           operationError,
	})
	return result, operationError
}

func (service *Service) rechargeGrant(ctx context.Context, userID UserID, paidAmount int64) (TransactionResult, error) {
	setting, err := service.store.GetSetting(ctx, settingKeyRechargeRates)
	if err != nil {
		return TransactionResult{}, err
	}
	rates := map[string]int64{}
	if err := setting.DecodeJSON(&rates); err != nil {
		return TransactionResult{}, err
	}
	grantedCredits, ok := rates[strconv.FormatInt(paidAmount, 10)]
	if !ok || grantedCredits <= 0 {
		return TransactionResult{}, fmt.Errorf("%w: %d", ErrUnknownRechargeAmount, paidAmount)
	}
	return service.runTransaction(ctx, userID, TransactionEarn, grantedCredits,
		fmt.Sprintf("Recharge for %d", paidAmount), &Reference{Kind: referenceKindRecharge, ID: paidAmount})
}

// AdminAdjust applies a signed balance correction on behalf of an operator.
func (service *Service) AdminAdjust(ctx context.Context, userID UserID, signedAmount int64, reason string) (TransactionResult, error) {
	description := reason
	if description == "" {
		description = "Administrative adjustment"
	}
	result, operationError := service.runTransaction(ctx, userID, TransactionAdminAdjust, signedAmount, description, nil)
	service.logOperation(ctx, OperationLog{
		Operation:       operationAdminAdjust,
		TransactionType: TransactionAdminAdjust,
		UserID:          userID,
		Amount:          result.Amount,
		Error:           operationError,
	})
	return result, operationError
}
