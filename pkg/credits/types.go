package credits

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// UserID identifies an account owner.
type UserID struct {
	value string
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// PostKind is the closed set of content categories the ledger operates over.
type PostKind string

const (
	PostKindLoad    PostKind = "load"
	PostKindTruck   PostKind = "truck"
	PostKindCompany PostKind = "company"
	PostKindJob     PostKind = "job"
	PostKindResume  PostKind = "resume"
)

// PostKinds returns all content kinds in stable order.
func PostKinds() []PostKind {
	return []PostKind{PostKindLoad, PostKindTruck, PostKindCompany, PostKindJob, PostKindResume}
}

// ParsePostKind validates a content kind string.
func ParsePostKind(raw string) (PostKind, error) {
	switch PostKind(raw) {
	case PostKindLoad, PostKindTruck, PostKindCompany, PostKindJob, PostKindResume:
		return PostKind(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPostKind, raw)
}

// String returns the kind value.
func (kind PostKind) String() string {
	return string(kind)
}

// PremiumType enumerates placement boost variants.
type PremiumType string

const (
	PremiumTop       PremiumType = "top"
	PremiumHighlight PremiumType = "highlight"
)

// ParsePremiumType validates a premium type string.
func ParsePremiumType(raw string) (PremiumType, error) {
	switch PremiumType(raw) {
	case PremiumTop, PremiumHighlight:
		return PremiumType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPremiumType, raw)
}

// String returns the premium type value.
func (premiumType PremiumType) String() string {
	return string(premiumType)
}

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TransactionEarn        TransactionType = "earn"
	TransactionSpend       TransactionType = "spend"
	TransactionRefund      TransactionType = "refund"
	TransactionAdminAdjust TransactionType = "admin_adjust"
)

// ParseTransactionType validates a transaction type string.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionEarn, TransactionSpend, TransactionRefund, TransactionAdminAdjust:
		return TransactionType(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
}

// String returns the transaction type value.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Account is the balance view stored per user.
type Account struct {
	UserID             string
	Credits            int64
	TotalCreditsEarned int64
	TotalCreditsSpent  int64
}

// Reference names the content item or action that caused a ledger entry.
type Reference struct {
	Kind string
	ID   int64
}

// TransactionRecord is a single immutable line in the credit log.
type TransactionRecord struct {
	EntryID      int64
	UserID       string
	Type         TransactionType
	Amount       int64
	BalanceAfter int64
	Description  string
	Reference    *Reference
	CreatedAt    time.Time
}

// TransactionResult reports a committed credit transaction.
type TransactionResult struct {
	EntryID         int64
	PreviousBalance int64
	NewBalance      int64
	Amount          int64
}

// Balance is the read view over an account.
type Balance struct {
	Credits            int64
	TotalCreditsEarned int64
	TotalCreditsSpent  int64
}

// Placement is a time-boxed visibility boost on one content item.
type Placement struct {
	PlacementID string
	UserID      string
	PostKind    PostKind
	PostID      int64
	PremiumType PremiumType
	CreditsCost int64
	StartsAt    time.Time
	EndsAt      time.Time
	IsActive    bool
}

// ChargeResult reports a successful post charge.
type ChargeResult struct {
	PreviousBalance int64
	NewBalance      int64
	Cost            int64
	PostKind        PostKind
}

// PremiumResult reports a successful boost purchase.
type PremiumResult struct {
	PlacementID   string
	Cost          int64
	StartsAt      time.Time
	EndsAt        time.Time
	DurationHours int
}

// ContentRow is the slice of a content item the core reads and mutates.
type ContentRow struct {
	PostID    int64
	UserID    string
	Title     string
	IsActive  bool
	IsPremium bool
	CreatedAt time.Time
}

// UserPosts partitions a user's content by visibility.
type UserPosts struct {
	Active   map[PostKind][]ContentRow
	Inactive map[PostKind][]ContentRow
}

// Store is the persistence contract used by Service. Implementations must
// make WithTx atomic: every store call made through the transaction-scoped
// Store commits or rolls back as one unit.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	EnsureAccount(ctx context.Context, userID UserID) error
	// GetAccountForUpdate reads the account with a lock strong enough that
	// concurrent transactions on the same account serialize.
	GetAccountForUpdate(ctx context.Context, userID UserID) (Account, error)
	GetAccount(ctx context.Context, userID UserID) (Account, error)
	UpdateAccountBalance(ctx context.Context, account Account) error

	InsertTransaction(ctx context.Context, record TransactionRecord) (int64, error)
	ListTransactions(ctx context.Context, userID UserID, limit int, offset int) ([]TransactionRecord, error)

	GetSetting(ctx context.Context, key string) (Setting, error)

	HasLivePlacement(ctx context.Context, kind PostKind, postID int64, premiumType PremiumType, now time.Time) (bool, error)
	InsertPlacement(ctx context.Context, placement Placement) (string, error)
	DeactivatePlacements(ctx context.Context, userID UserID, kind PostKind, postID int64) (int64, error)

	// GetPostForUpdate locks the content row so concurrent placement
	// purchases for the same post serialize.
	GetPostForUpdate(ctx context.Context, kind PostKind, postID int64) (ContentRow, error)
	MarkPostPremium(ctx context.Context, kind PostKind, postID int64) error
	ListUserPosts(ctx context.Context, userID UserID, kind PostKind) ([]ContentRow, error)
	SetPostActive(ctx context.Context, userID UserID, kind PostKind, postID int64, active bool) (bool, error)
}
