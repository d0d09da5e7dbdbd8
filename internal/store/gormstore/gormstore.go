package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/loadmarket/credits/pkg/credits"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	dialectPostgres       = "postgres"

	errorOperationStore    = "store"
	errorSubjectAccount    = "account"
	errorSubjectEntry      = "entry"
	errorSubjectSetting    = "setting"
	errorSubjectPlacement  = "placement"
	errorSubjectContent    = "content"
	errorCodeCreate        = "create"
	errorCodeGet           = "get"
	errorCodeInsert        = "insert"
	errorCodeList          = "list"
	errorCodeUpdate        = "update"
	errorCodeCount         = "count"
	errorCodeDeactivate    = "deactivate"
	errorCodeUnknownKind   = "unknown_kind"
	errorCodeInvalidRecord = "invalid"
)

// Store implements credits.Store using GORM over PostgreSQL or SQLite.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates every table the store owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore credits.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// rowLockClauses returns SELECT ... FOR UPDATE on PostgreSQL. SQLite has no
// row locks; its single-writer transactions already serialize balance
// updates.
func (store *Store) rowLockClauses() []clause.Expression {
	if store.db.Dialector.Name() == dialectPostgres {
		return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
	}
	return nil
}

func (store *Store) EnsureAccount(ctx context.Context, userID credits.UserID) error {
	account := Account{UserID: userID.String()}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&account).Error
	if err != nil && !isDuplicateKey(err) {
		return wrapStoreError(errorSubjectAccount, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetAccountForUpdate(ctx context.Context, userID credits.UserID) (credits.Account, error) {
	return store.getAccount(ctx, userID, store.rowLockClauses())
}

func (store *Store) GetAccount(ctx context.Context, userID credits.UserID) (credits.Account, error) {
	return store.getAccount(ctx, userID, nil)
}

func (store *Store) getAccount(ctx context.Context, userID credits.UserID, locks []clause.Expression) (credits.Account, error) {
	var account Account
	query := store.db.WithContext(ctx)
	if len(locks) > 0 {
		query = query.Clauses(locks...)
	}
	err := query.Where("user_id = ?", userID.String()).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return credits.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, credits.ErrUserNotFound)
		}
		return credits.Account{}, wrapStoreError(errorSubjectAccount, errorCodeGet, err)
	}
	return credits.Account{
		UserID:             account.UserID,
		Credits:            account.Credits,
		TotalCreditsEarned: account.TotalCreditsEarned,
		TotalCreditsSpent:  account.TotalCreditsSpent,
	}, nil
}

func (store *Store) UpdateAccountBalance(ctx context.Context, account credits.Account) error {
	result := store.db.WithContext(ctx).
		Model(&Account{}).
		Where("user_id = ?", account.UserID).
		Updates(map[string]interface{}{
			"credits":              account.Credits,
			"total_credits_earned": account.TotalCreditsEarned,
			"total_credits_spent":  account.TotalCreditsSpent,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectAccount, errorCodeUpdate, credits.ErrUserNotFound)
	}
	return nil
}

func (store *Store) InsertTransaction(ctx context.Context, record credits.TransactionRecord) (int64, error) {
	model := CreditTransaction{
		UserID:       record.UserID,
		Type:         record.Type.String(),
		Amount:       record.Amount,
		BalanceAfter: record.BalanceAfter,
		Description:  record.Description,
		CreatedAt:    record.CreatedAt,
	}
	if record.Reference != nil {
		kind := record.Reference.Kind
		id := record.Reference.ID
		model.ReferenceKind = &kind
		model.ReferenceID = &id
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, wrapStoreError(errorSubjectEntry, errorCodeInsert, err)
	}
	return model.ID, nil
}

func (store *Store) ListTransactions(ctx context.Context, userID credits.UserID, limit int, offset int) ([]credits.TransactionRecord, error) {
	var rows []CreditTransaction
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEntry, errorCodeList, err)
	}

	records := make([]credits.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		record, err := mapTransaction(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEntry, errorCodeInvalidRecord, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (store *Store) GetSetting(ctx context.Context, key string) (credits.Setting, error) {
	var setting Setting
	err := store.db.WithContext(ctx).Where("key = ?", key).Take(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return credits.Setting{}, wrapStoreError(errorSubjectSetting, errorCodeGet, fmt.Errorf("%w: %s", credits.ErrSettingNotFound, key))
		}
		return credits.Setting{}, wrapStoreError(errorSubjectSetting, errorCodeGet, err)
	}
	return credits.Setting{
		Key:      setting.Key,
		Value:    setting.Value,
		DataType: credits.SettingType(setting.DataType),
	}, nil
}

func (store *Store) HasLivePlacement(ctx context.Context, kind credits.PostKind, postID int64, premiumType credits.PremiumType, now time.Time) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&PremiumPlacement{}).
		Where("post_kind = ? AND post_id = ? AND premium_type = ?", kind.String(), postID, premiumType.String()).
		Where("is_active = ? AND ends_at > ?", true, now).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectPlacement, errorCodeCount, err)
	}
	return count > 0, nil
}

func (store *Store) InsertPlacement(ctx context.Context, placement credits.Placement) (string, error) {
	model := PremiumPlacement{
		PlacementID: placement.PlacementID,
		UserID:      placement.UserID,
		PostKind:    placement.PostKind.String(),
		PostID:      placement.PostID,
		PremiumType: placement.PremiumType.String(),
		CreditsCost: placement.CreditsCost,
		StartsAt:    placement.StartsAt,
		EndsAt:      placement.EndsAt,
		IsActive:    placement.IsActive,
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return "", wrapStoreError(errorSubjectPlacement, errorCodeInsert, err)
	}
	return model.PlacementID, nil
}

func (store *Store) DeactivatePlacements(ctx context.Context, userID credits.UserID, kind credits.PostKind, postID int64) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&PremiumPlacement{}).
		Where("user_id = ? AND post_kind = ? AND post_id = ? AND is_active = ?", userID.String(), kind.String(), postID, true).
		Update("is_active", false)
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectPlacement, errorCodeDeactivate, result.Error)
	}
	return result.RowsAffected, nil
}

// contentRow is the cross-table projection of one content item.
type contentRow struct {
	ID        int64
	UserID    string
	Title     string
	IsActive  bool
	IsPremium bool
	CreatedAt time.Time
}

const contentColumns = "id, user_id, title, is_active, is_premium, created_at"

// contentTable maps a content kind to its table. The switch is exhaustive
// over the closed kind set; anything else is a caller bug.
func contentTable(kind credits.PostKind) (string, error) {
	switch kind {
	case credits.PostKindLoad:
		return Load{}.TableName(), nil
	case credits.PostKindTruck:
		return Truck{}.TableName(), nil
	case credits.PostKindCompany:
		return Company{}.TableName(), nil
	case credits.PostKindJob:
		return Job{}.TableName(), nil
	case credits.PostKindResume:
		return Resume{}.TableName(), nil
	default:
		return "", fmt.Errorf("%w: %q", credits.ErrInvalidPostKind, kind)
	}
}

func (store *Store) GetPostForUpdate(ctx context.Context, kind credits.PostKind, postID int64) (credits.ContentRow, error) {
	table, err := contentTable(kind)
	if err != nil {
		return credits.ContentRow{}, wrapStoreError(errorSubjectContent, errorCodeUnknownKind, err)
	}
	var row contentRow
	query := store.db.WithContext(ctx).Table(table).Select(contentColumns)
	if locks := store.rowLockClauses(); len(locks) > 0 {
		query = query.Clauses(locks...)
	}
	err = query.Where("id = ?", postID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return credits.ContentRow{}, wrapStoreError(errorSubjectContent, errorCodeGet, fmt.Errorf("%w: %s %d", credits.ErrContentNotFound, kind, postID))
		}
		return credits.ContentRow{}, wrapStoreError(errorSubjectContent, errorCodeGet, err)
	}
	return mapContentRow(row), nil
}

func (store *Store) MarkPostPremium(ctx context.Context, kind credits.PostKind, postID int64) error {
	table, err := contentTable(kind)
	if err != nil {
		return wrapStoreError(errorSubjectContent, errorCodeUnknownKind, err)
	}
	result := store.db.WithContext(ctx).
		Table(table).
		Where("id = ?", postID).
		Update("is_premium", true)
	if result.Error != nil {
		return wrapStoreError(errorSubjectContent, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectContent, errorCodeUpdate, fmt.Errorf("%w: %s %d", credits.ErrContentNotFound, kind, postID))
	}
	return nil
}

func (store *Store) ListUserPosts(ctx context.Context, userID credits.UserID, kind credits.PostKind) ([]credits.ContentRow, error) {
	table, err := contentTable(kind)
	if err != nil {
		return nil, wrapStoreError(errorSubjectContent, errorCodeUnknownKind, err)
	}
	var rows []contentRow
	err = store.db.WithContext(ctx).
		Table(table).
		Select(contentColumns).
		Where("user_id = ?", userID.String()).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectContent, errorCodeList, err)
	}
	posts := make([]credits.ContentRow, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, mapContentRow(row))
	}
	return posts, nil
}

func (store *Store) SetPostActive(ctx context.Context, userID credits.UserID, kind credits.PostKind, postID int64, active bool) (bool, error) {
	table, err := contentTable(kind)
	if err != nil {
		return false, wrapStoreError(errorSubjectContent, errorCodeUnknownKind, err)
	}
	result := store.db.WithContext(ctx).
		Table(table).
		Where("id = ? AND user_id = ?", postID, userID.String()).
		Update("is_active", active)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectContent, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected > 0, nil
}

func mapTransaction(row CreditTransaction) (credits.TransactionRecord, error) {
	transactionType, err := credits.ParseTransactionType(row.Type)
	if err != nil {
		return credits.TransactionRecord{}, err
	}
	record := credits.TransactionRecord{
		EntryID:      row.ID,
		UserID:       row.UserID,
		Type:         transactionType,
		Amount:       row.Amount,
		BalanceAfter: row.BalanceAfter,
		Description:  row.Description,
		CreatedAt:    row.CreatedAt,
	}
	if row.ReferenceKind != nil && row.ReferenceID != nil {
		record.Reference = &credits.Reference{Kind: *row.ReferenceKind, ID: *row.ReferenceID}
	}
	return record, nil
}

func mapContentRow(row contentRow) credits.ContentRow {
	return credits.ContentRow{
		PostID:    row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		IsActive:  row.IsActive,
		IsPremium: row.IsPremium,
		CreatedAt: row.CreatedAt,
	}
}

func wrapStoreError(subject string, code string, err error) error {
	return credits.WrapError(errorOperationStore, subject, code, err)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
