package credits

import (
	"context"
	"fmt"
)

const statusActive = "active"

// UserPosts fans out over the five content kinds and partitions the user's
// items by visibility. A failing kind propagates instead of silently
// shrinking the result.
func (service *Service) UserPosts(ctx context.Context, userID UserID) (UserPosts, error) {
	posts := UserPosts{
		Active:   make(map[PostKind][]ContentRow, len(PostKinds())),
		Inactive: make(map[PostKind][]ContentRow, len(PostKinds())),
	}
	for _, kind := range PostKinds() {
		rows, err := service.store.ListUserPosts(ctx, userID, kind)
		if err != nil {
			return UserPosts{}, fmt.Errorf("list %s posts: %w", kind, err)
		}
		for _, row := range rows {
			if row.IsActive {
				posts.Active[kind] = append(posts.Active[kind], row)
			} else {
				posts.Inactive[kind] = append(posts.Inactive[kind], row)
			}
		}
	}
	return posts, nil
}

// UpdatePostStatus maps a status string onto the visibility flag, scoped to
// the owner. Only the literal "active" makes an item visible; every other
// accepted status (inactive, filled, hired) hides it. Returns whether a row
// was affected.
func (service *Service) UpdatePostStatus(ctx context.Context, userID UserID, kind PostKind, postID int64, status string) (bool, error) {
	updated, err := service.store.SetPostActive(ctx, userID, kind, postID, status == statusActive)
	service.logOperation(ctx, OperationLog{
		Operation: operationUpdateStatus,
		UserID:    userID,
		PostKind:  kind,
		PostID:    postID,
		Error:     err,
	})
	return updated, err
}

// DeleteUserPost soft-deletes a content item and, in the same transaction,
// deactivates any premium placements pointing at it. Unused premium time is
// not refunded. Fails without mutation when the item does not exist or
// belongs to another user.
func (service *Service) DeleteUserPost(ctx context.Context, userID UserID, kind PostKind, postID int64) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		deleted, err := transactionStore.SetPostActive(ctx, userID, kind, postID, false)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: %s %d", ErrContentNotFound, kind, postID)
		}
		if _, err := transactionStore.DeactivatePlacements(ctx, userID, kind, postID); err != nil {
			return err
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationDeletePost,
		UserID:    userID,
		PostKind:  kind,
		PostID:    postID,
		Error:     operationError,
	})
	return operationError
}
