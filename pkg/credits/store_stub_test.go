package credits

import (
	"context"
	"fmt"
	"testing"
	"time"
)

var stubNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

// stubStore is an in-memory Store with snapshot-based transaction rollback,
// so atomicity behavior is observable from tests.
type stubStore struct {
	accounts     map[string]Account
	transactions []TransactionRecord
	settings     map[string]Setting
	placements   []Placement
	posts        map[PostKind][]ContentRow
	nextEntryID  int64

	getAccountError      error
	updateAccountError   error
	insertEntryError     error
	listEntriesError     error
	settingError         error
	placementCheckError  error
	insertPlacementError error
	markPremiumError     error
	listPostsError       error
	setActiveError       error
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{
		accounts: make(map[string]Account),
		settings: make(map[string]Setting),
		posts:    make(map[PostKind][]ContentRow),
	}
}

func (store *stubStore) addAccount(userID string, balance int64) {
	store.accounts[userID] = Account{UserID: userID, Credits: balance, TotalCreditsEarned: balance}
}

func (store *stubStore) setNumberSetting(key string, value int64) {
	store.settings[key] = Setting{Key: key, Value: fmt.Sprintf("%d", value), DataType: SettingNumber}
}

func (store *stubStore) addPost(kind PostKind, row ContentRow) {
	store.posts[kind] = append(store.posts[kind], row)
}

func (store *stubStore) snapshot() *stubStore {
	copied := &stubStore{
		accounts:     make(map[string]Account, len(store.accounts)),
		transactions: append([]TransactionRecord(nil), store.transactions...),
		settings:     store.settings,
		placements:   append([]Placement(nil), store.placements...),
		posts:        make(map[PostKind][]ContentRow, len(store.posts)),
		nextEntryID:  store.nextEntryID,
	}
	for userID, account := range store.accounts {
		copied.accounts[userID] = account
	}
	for kind, rows := range store.posts {
		copied.posts[kind] = append([]ContentRow(nil), rows...)
	}
	return copied
}

func (store *stubStore) restore(saved *stubStore) {
	store.accounts = saved.accounts
	store.transactions = saved.transactions
	store.placements = saved.placements
	store.posts = saved.posts
	store.nextEntryID = saved.nextEntryID
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	saved := store.snapshot()
	if err := fn(ctx, store); err != nil {
		store.restore(saved)
		return err
	}
	return nil
}

func (store *stubStore) EnsureAccount(_ context.Context, userID UserID) error {
	if _, exists := store.accounts[userID.String()]; !exists {
		store.accounts[userID.String()] = Account{UserID: userID.String()}
	}
	return nil
}

func (store *stubStore) GetAccountForUpdate(ctx context.Context, userID UserID) (Account, error) {
	return store.GetAccount(ctx, userID)
}

func (store *stubStore) GetAccount(_ context.Context, userID UserID) (Account, error) {
	if store.getAccountError != nil {
		return Account{}, store.getAccountError
	}
	account, exists := store.accounts[userID.String()]
	if !exists {
		return Account{}, ErrUserNotFound
	}
	return account, nil
}

func (store *stubStore) UpdateAccountBalance(_ context.Context, account Account) error {
	if store.updateAccountError != nil {
		return store.updateAccountError
	}
	if _, exists := store.accounts[account.UserID]; !exists {
		return ErrUserNotFound
	}
	store.accounts[account.UserID] = account
	return nil
}

func (store *stubStore) InsertTransaction(_ context.Context, record TransactionRecord) (int64, error) {
	if store.insertEntryError != nil {
		return 0, store.insertEntryError
	}
	store.nextEntryID++
	record.EntryID = store.nextEntryID
	store.transactions = append(store.transactions, record)
	return record.EntryID, nil
}

func (store *stubStore) ListTransactions(_ context.Context, userID UserID, limit int, offset int) ([]TransactionRecord, error) {
	if store.listEntriesError != nil {
		return nil, store.listEntriesError
	}
	var newestFirst []TransactionRecord
	for index := len(store.transactions) - 1; index >= 0; index-- {
		if store.transactions[index].UserID == userID.String() {
			newestFirst = append(newestFirst, store.transactions[index])
		}
	}
	if offset >= len(newestFirst) {
		return nil, nil
	}
	newestFirst = newestFirst[offset:]
	if limit < len(newestFirst) {
		newestFirst = newestFirst[:limit]
	}
	return newestFirst, nil
}

func (store *stubStore) GetSetting(_ context.Context, key string) (Setting, error) {
	if store.settingError != nil {
		return Setting{}, store.settingError
	}
	setting, exists := store.settings[key]
	if !exists {
		return Setting{}, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return setting, nil
}

func (store *stubStore) HasLivePlacement(_ context.Context, kind PostKind, postID int64, premiumType PremiumType, now time.Time) (bool, error) {
	if store.placementCheckError != nil {
		return false, store.placementCheckError
	}
	for _, placement := range store.placements {
		if placement.PostKind == kind && placement.PostID == postID && placement.PremiumType == premiumType &&
			placement.IsActive && placement.EndsAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) InsertPlacement(_ context.Context, placement Placement) (string, error) {
	if store.insertPlacementError != nil {
		return "", store.insertPlacementError
	}
	placement.PlacementID = fmt.Sprintf("placement-%d", len(store.placements)+1)
	store.placements = append(store.placements, placement)
	return placement.PlacementID, nil
}

func (store *stubStore) DeactivatePlacements(_ context.Context, userID UserID, kind PostKind, postID int64) (int64, error) {
	var affected int64
	for index := range store.placements {
		placement := &store.placements[index]
		if placement.UserID == userID.String() && placement.PostKind == kind && placement.PostID == postID && placement.IsActive {
			placement.IsActive = false
			affected++
		}
	}
	return affected, nil
}

func (store *stubStore) GetPostForUpdate(_ context.Context, kind PostKind, postID int64) (ContentRow, error) {
	for _, row := range store.posts[kind] {
		if row.PostID == postID {
			return row, nil
		}
	}
	return ContentRow{}, fmt.Errorf("%w: %s %d", ErrContentNotFound, kind, postID)
}

func (store *stubStore) MarkPostPremium(_ context.Context, kind PostKind, postID int64) error {
	if store.markPremiumError != nil {
		return store.markPremiumError
	}
	for index := range store.posts[kind] {
		if store.posts[kind][index].PostID == postID {
			store.posts[kind][index].IsPremium = true
			return nil
		}
	}
	return fmt.Errorf("%w: %s %d", ErrContentNotFound, kind, postID)
}

func (store *stubStore) ListUserPosts(_ context.Context, userID UserID, kind PostKind) ([]ContentRow, error) {
	if store.listPostsError != nil {
		return nil, store.listPostsError
	}
	var rows []ContentRow
	for _, row := range store.posts[kind] {
		if row.UserID == userID.String() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (store *stubStore) SetPostActive(_ context.Context, userID UserID, kind PostKind, postID int64, active bool) (bool, error) {
	if store.setActiveError != nil {
		return false, store.setActiveError
	}
	for index := range store.posts[kind] {
		row := &store.posts[kind][index]
		if row.PostID == postID && row.UserID == userID.String() {
			row.IsActive = active
			return true, nil
		}
	}
	return false, nil
}

func (store *stubStore) mustPlacement(test *testing.T, placementID string) Placement {
	test.Helper()
	for _, placement := range store.placements {
		if placement.PlacementID == placementID {
			return placement
		}
	}
	test.Fatalf("placement %s not found", placementID)
	return Placement{}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() time.Time { return stubNow }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	userID, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	return userID
}
