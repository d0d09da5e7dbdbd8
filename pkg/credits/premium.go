package credits

import (
	"context"
	"fmt"
	"time"
)

// tierRule maps a duration upper bound (hours, inclusive) to a cost key.
// Rules are evaluated top-down; the last rule of a tier is the fallback for
// any longer duration, so new tiers are row additions.
type tierRule struct {
	maxHours   int
	settingKey string
}

var premiumTierRules = map[PremiumType][]tierRule{
	PremiumTop: {
		{maxHours: 24, settingKey: settingKeyPremiumTop24h},
		{maxHours: 72, settingKey: settingKeyPremiumTop72h},
		{maxHours: 0, settingKey: settingKeyPremiumTop168h},
	},
	PremiumHighlight: {
		{maxHours: 0, settingKey: settingKeyPremiumHighlight},
	},
}

// premiumCostKey resolves the cost setting key for a tier and duration.
func premiumCostKey(premiumType PremiumType, durationHours int) (string, error) {
	rules, ok := premiumTierRules[premiumType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPremiumType, premiumType)
	}
	for _, rule := range rules {
		if rule.maxHours == 0 || durationHours <= rule.maxHours {
			return rule.settingKey, nil
		}
	}
	return rules[len(rules)-1].settingKey, nil
}

// MakePremium sells a time-boxed visibility boost on one of the user's posts.
// The duplicate check, credit spend, placement insert, and is_premium flip all
// share one transaction: a failure at any step rolls back the spend.
func (service *Service) MakePremium(ctx context.Context, userID UserID, kind PostKind, postID int64, premiumType PremiumType, durationHours int) (PremiumResult, error) {
	if durationHours <= 0 {
		durationHours = defaultPremiumDurationHours
	}
	costKey, err := premiumCostKey(premiumType, durationHours)
	if err != nil {
		return PremiumResult{}, err
	}

	var result PremiumResult
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		// Locking the content row serializes concurrent purchases for the
		// same post, closing the check-then-insert race.
		row, err := transactionStore.GetPostForUpdate(ctx, kind, postID)
		if err != nil {
			return err
		}
		if row.UserID != userID.String() {
			return fmt.Errorf("%w: %s %d", ErrContentNotFound, kind, postID)
		}

		now := service.nowFn()
		live, err := transactionStore.HasLivePlacement(ctx, kind, postID, premiumType, now)
		if err != nil {
			return err
		}
		if live {
			return DuplicatePremiumError{PostKind: kind, PostID: postID, PremiumType: premiumType}
		}

		setting, err := transactionStore.GetSetting(ctx, costKey)
		if err != nil {
			return err
		}
		cost, err := setting.Credits()
		if err != nil {
			return err
		}

		if _, err := service.applyTransaction(ctx, transactionStore, userID, TransactionSpend, cost,
			fmt.Sprintf("%s - %s", premiumType, kind), &Reference{Kind: referenceKindPremiumPrefix + kind.String(), ID: postID}); err != nil {
			return err
		}

		startsAt := now
		endsAt := now.Add(time.Duration(durationHours) * time.Hour)
		placementID, err := transactionStore.InsertPlacement(ctx, Placement{
			UserID:      userID.String(),
			PostKind:    kind,
			PostID:      postID,
			PremiumType: premiumType,
			CreditsCost: cost,
			StartsAt:    startsAt,
			EndsAt:      endsAt,
			IsActive:    true,
		})
		if err != nil {
			return err
		}
		if err := transactionStore.MarkPostPremium(ctx, kind, postID); err != nil {
			return err
		}

		result = PremiumResult{
			PlacementID:   placementID,
			Cost:          cost,
			StartsAt:      startsAt,
			EndsAt:        endsAt,
			DurationHours: durationHours,
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:       operationPremium,
		TransactionType: TransactionSpend,
		UserID:          userID,
		PostKind:        kind,
		PostID:          postID,
		PremiumType:     premiumType,
		Amount:          -result.Cost,
		Error:           operationError,
	})
	return result, operationError
}
