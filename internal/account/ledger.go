package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"betmarket/internal/database"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrHistoryNotFound   = errors.New("wallet history record not found")
	ErrAccountNotActive  = errors.New("account is not active")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Entry describes the journal row accompanying a balance mutation.
type Entry struct {
	Type        string
	ReferenceID string
	Description string
	Status      string // defaults to COMPLETED
}

// Ledger owns every balance mutation. Callers run it inside their own
// transaction; a balance write and its journal row are never split.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger { return &Ledger{db: db} }

// LockUser loads a user row under FOR UPDATE.
func (l *Ledger) LockUser(ctx context.Context, tx *gorm.DB, userID string) (*User, error) {
	var u User
	err := tx.WithContext(ctx).Scopes(database.LockForUpdate).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// LockUsers locks a set of user rows in ascending id order, so concurrent
// settlements touching overlapping users cannot deadlock on each other.
func (l *Ledger) LockUsers(ctx context.Context, tx *gorm.DB, userIDs []string) (map[string]*User, error) {
	if len(userIDs) == 0 {
		return map[string]*User{}, nil
	}
	var users []User
	err := tx.WithContext(ctx).Scopes(database.LockForUpdate).
		Where("id IN ?", userIDs).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for _, id := range userIDs {
		if _, ok := byID[id]; !ok {
			return nil, ErrUserNotFound
		}
	}
	return byID, nil
}

func (l *Ledger) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := l.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (l *Ledger) GetUserByReferralCode(ctx context.Context, tx *gorm.DB, code string) (*User, error) {
	var u User
	err := tx.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Credit increases an already-locked user's balance and appends the matching
// journal row. amount must be positive.
func (l *Ledger) Credit(ctx context.Context, tx *gorm.DB, u *User, amount decimal.Decimal, entry Entry) (*WalletHistory, error) {
	if !amount.IsPositive() {
		return nil, errors.New("credit amount must be positive")
	}
	return l.apply(ctx, tx, u, amount, entry)
}

// Debit decreases an already-locked user's balance, failing when the balance
// cannot cover the amount. The journal row carries the negated amount.
func (l *Ledger) Debit(ctx context.Context, tx *gorm.DB, u *User, amount decimal.Decimal, entry Entry) (*WalletHistory, error) {
	if !amount.IsPositive() {
		return nil, errors.New("debit amount must be positive")
	}
	if u.Balance.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	return l.apply(ctx, tx, u, amount.Neg(), entry)
}

func (l *Ledger) apply(ctx context.Context, tx *gorm.DB, u *User, delta decimal.Decimal, entry Entry) (*WalletHistory, error) {
	before := u.Balance
	after := before.Add(delta)

	if err := tx.WithContext(ctx).Model(&User{}).Where("id = ?", u.ID).
		Update("balance", after).Error; err != nil {
		return nil, err
	}
	u.Balance = after

	status := entry.Status
	if status == "" {
		status = HistoryStatusCompleted
	}
	h := &WalletHistory{
		ID:            uuid.New().String(),
		UserID:        u.ID,
		Type:          entry.Type,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Status:        status,
		Description:   entry.Description,
	}
	if entry.ReferenceID != "" {
		ref := entry.ReferenceID
		h.ReferenceID = &ref
	}
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// AppendMirror writes a journal row without touching the balance. Used by
// deposit requests, where the credit happens only at admin approval.
func (l *Ledger) AppendMirror(ctx context.Context, tx *gorm.DB, u *User, amount decimal.Decimal, entry Entry) (*WalletHistory, error) {
	status := entry.Status
	if status == "" {
		status = HistoryStatusPending
	}
	h := &WalletHistory{
		ID:            uuid.New().String(),
		UserID:        u.ID,
		Type:          entry.Type,
		Amount:        amount,
		BalanceBefore: u.Balance,
		BalanceAfter:  u.Balance,
		Status:        status,
		Description:   entry.Description,
	}
	if entry.ReferenceID != "" {
		ref := entry.ReferenceID
		h.ReferenceID = &ref
	}
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// MirrorForUpdate locks the journal row mirroring a deposit/withdrawal
// transaction.
func (l *Ledger) MirrorForUpdate(ctx context.Context, tx *gorm.DB, referenceID, histType string) (*WalletHistory, error) {
	var h WalletHistory
	err := tx.WithContext(ctx).Scopes(database.LockForUpdate).
		Where("reference_id = ? AND type = ?", referenceID, histType).
		First(&h).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHistoryNotFound
		}
		return nil, err
	}
	return &h, nil
}

// History returns a user's most recent journal rows.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]WalletHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []WalletHistory
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
