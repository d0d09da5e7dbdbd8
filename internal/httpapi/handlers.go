package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loadmarket/credits/pkg/credits"
	"go.uber.org/zap"
)

type apiHandler struct {
	service *credits.Service
	logger  *zap.Logger
}

func (handler *apiHandler) handleEnsureAccount(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	if err := handler.service.EnsureAccount(ctx.Request.Context(), userID); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String()})
}

func (handler *apiHandler) handleBalance(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	balance, err := handler.service.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"credits":              balance.Credits,
		"total_credits_earned": balance.TotalCreditsEarned,
		"total_credits_spent":  balance.TotalCreditsSpent,
	})
}

func (handler *apiHandler) handleHistory(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	records, err := handler.service.History(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	entries := make([]gin.H, 0, len(records))
	for _, record := range records {
		entry := gin.H{
			"entry_id":      record.EntryID,
			"type":          record.Type.String(),
			"amount":        record.Amount,
			"balance_after": record.BalanceAfter,
			"description":   record.Description,
			"created_at":    record.CreatedAt.UTC().Format(time.RFC3339),
		}
		if record.Reference != nil {
			entry["reference_type"] = record.Reference.Kind
			entry["reference_id"] = record.Reference.ID
		}
		entries = append(entries, entry)
	}
	ctx.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (handler *apiHandler) handleSetting(ctx *gin.Context) {
	setting, err := handler.service.GetSetting(ctx.Request.Context(), ctx.Param("key"))
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	value, err := setting.Decode()
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"key": setting.Key, "value": value, "data_type": string(setting.DataType)})
}

type rechargeRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (handler *apiHandler) handleRecharge(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	var request rechargeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	result, err := handler.service.Recharge(ctx.Request.Context(), userID, request.Amount)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"credits_granted": result.Amount,
		"new_balance":     result.NewBalance,
	})
}

func (handler *apiHandler) handleUserPosts(ctx *gin.Context) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return
	}
	posts, err := handler.service.UserPosts(ctx.Request.Context(), userID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"active":   groupByKind(posts.Active),
		"inactive": groupByKind(posts.Inactive),
	})
}

func (handler *apiHandler) handleChargeForPost(ctx *gin.Context) {
	userID, kind, postID, ok := handler.postTarget(ctx)
	if !ok {
		return
	}
	result, err := handler.service.ChargeForPost(ctx.Request.Context(), userID, kind, postID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"previous_balance": result.PreviousBalance,
		"new_balance":      result.NewBalance,
		"cost":             result.Cost,
		"post_type":        result.PostKind.String(),
	})
}

type premiumRequest struct {
	PremiumType   string `json:"premium_type" binding:"required"`
	DurationHours int    `json:"duration_hours"`
}

func (handler *apiHandler) handleMakePremium(ctx *gin.Context) {
	userID, kind, postID, ok := handler.postTarget(ctx)
	if !ok {
		return
	}
	var request premiumRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "premium_type is required"})
		return
	}
	premiumType, err := credits.ParsePremiumType(request.PremiumType)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	result, err := handler.service.MakePremium(ctx.Request.Context(), userID, kind, postID, premiumType, request.DurationHours)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"premium_id":     result.PlacementID,
		"cost":           result.Cost,
		"start_time":     result.StartsAt.UTC().Format(time.RFC3339),
		"end_time":       result.EndsAt.UTC().Format(time.RFC3339),
		"duration_hours": result.DurationHours,
	})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (handler *apiHandler) handleUpdateStatus(ctx *gin.Context) {
	userID, kind, postID, ok := handler.postTarget(ctx)
	if !ok {
		return
	}
	var request statusRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	updated, err := handler.service.UpdatePostStatus(ctx.Request.Context(), userID, kind, postID, request.Status)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	if !updated {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"updated": true})
}

func (handler *apiHandler) handleDeletePost(ctx *gin.Context) {
	userID, kind, postID, ok := handler.postTarget(ctx)
	if !ok {
		return
	}
	if err := handler.service.DeleteUserPost(ctx.Request.Context(), userID, kind, postID); err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"deleted": true})
}

type adjustRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason"`
}

func (handler *apiHandler) handleAdminAdjust(ctx *gin.Context) {
	var request adjustRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "user_id and amount are required"})
		return
	}
	targetUserID, err := credits.NewUserID(request.UserID)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	result, err := handler.service.AdminAdjust(ctx.Request.Context(), targetUserID, request.Amount, request.Reason)
	if err != nil {
		handler.writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"previous_balance": result.PreviousBalance,
		"new_balance":      result.NewBalance,
		"amount":           result.Amount,
	})
}

func (handler *apiHandler) userID(ctx *gin.Context) (credits.UserID, bool) {
	userID, err := credits.NewUserID(callerUserID(ctx))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return credits.UserID{}, false
	}
	return userID, true
}

func (handler *apiHandler) postTarget(ctx *gin.Context) (credits.UserID, credits.PostKind, int64, bool) {
	userID, ok := handler.userID(ctx)
	if !ok {
		return credits.UserID{}, "", 0, false
	}
	kind, err := credits.ParsePostKind(ctx.Param("kind"))
	if err != nil {
		handler.writeError(ctx, err)
		return credits.UserID{}, "", 0, false
	}
	postID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || postID <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return credits.UserID{}, "", 0, false
	}
	return userID, kind, postID, true
}

func groupByKind(byKind map[credits.PostKind][]credits.ContentRow) gin.H {
	grouped := gin.H{}
	for kind, rows := range byKind {
		posts := make([]gin.H, 0, len(rows))
		for _, row := range rows {
			posts = append(posts, gin.H{
				"id":         row.PostID,
				"title":      row.Title,
				"is_active":  row.IsActive,
				"is_premium": row.IsPremium,
				"created_at": row.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		grouped[kind.String()] = posts
	}
	return grouped
}

// writeError maps domain errors to HTTP responses: user-recoverable cases get
// their own codes, configuration faults stay server-side.
func (handler *apiHandler) writeError(ctx *gin.Context, err error) {
	var insufficient credits.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		ctx.JSON(http.StatusPaymentRequired, gin.H{
			"error":     "insufficient balance",
			"required":  insufficient.Required,
			"available": insufficient.Available,
			"shortfall": insufficient.Shortfall(),
		})
	case errors.Is(err, credits.ErrInsufficientBalance):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
	case errors.Is(err, credits.ErrDuplicatePremium):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, credits.ErrUserNotFound), errors.Is(err, credits.ErrContentNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, credits.ErrInvalidPostKind),
		errors.Is(err, credits.ErrInvalidPremiumType),
		errors.Is(err, credits.ErrInvalidAmount),
		errors.Is(err, credits.ErrInvalidUserID),
		errors.Is(err, credits.ErrUnknownRechargeAmount):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		handler.logger.Error("credits api internal error", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
