package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"betmarket/internal/testutil"
)

func newUser(t *testing.T, db *gorm.DB, balance int64) *User {
	t.Helper()
	u := &User{
		ID:       uuid.New().String(),
		Username: "user-" + uuid.New().String()[:8],
		Role:     "USER",
		Status:   StatusActive,
		Balance:  decimal.NewFromInt(balance),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestCreditAppendsJournalRow(t *testing.T) {
	db := testutil.NewTestDB(t, &User{}, &WalletHistory{})
	ledger := NewLedger(db)
	u := newUser(t, db, 1000)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := ledger.LockUser(context.Background(), tx, u.ID)
		require.NoError(t, err)
		_, err = ledger.Credit(context.Background(), tx, locked, decimal.NewFromInt(500), Entry{
			Type: HistoryWin, ReferenceID: uuid.New().String(),
		})
		return err
	})
	require.NoError(t, err)

	var got User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(1500)))

	var rows []WalletHistory
	require.NoError(t, db.Where("user_id = ?", u.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, HistoryWin, rows[0].Type)
	require.True(t, rows[0].Amount.Equal(decimal.NewFromInt(500)))
	require.True(t, rows[0].BalanceAfter.Sub(rows[0].BalanceBefore).Equal(rows[0].Amount))
	require.Equal(t, HistoryStatusCompleted, rows[0].Status)
}

func TestDebitRecordsNegativeAmount(t *testing.T) {
	db := testutil.NewTestDB(t, &User{}, &WalletHistory{})
	ledger := NewLedger(db)
	u := newUser(t, db, 2000)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := ledger.LockUser(context.Background(), tx, u.ID)
		require.NoError(t, err)
		_, err = ledger.Debit(context.Background(), tx, locked, decimal.NewFromInt(1500), Entry{Type: HistoryBet})
		return err
	})
	require.NoError(t, err)

	var rows []WalletHistory
	require.NoError(t, db.Where("user_id = ?", u.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Amount.Equal(decimal.NewFromInt(-1500)))
	require.True(t, rows[0].BalanceAfter.Sub(rows[0].BalanceBefore).Equal(rows[0].Amount))

	var got User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(500)))
}

func TestDebitInsufficientFunds(t *testing.T) {
	db := testutil.NewTestDB(t, &User{}, &WalletHistory{})
	ledger := NewLedger(db)
	u := newUser(t, db, 999)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := ledger.LockUser(context.Background(), tx, u.ID)
		require.NoError(t, err)
		_, err = ledger.Debit(context.Background(), tx, locked, decimal.NewFromInt(1000), Entry{Type: HistoryBet})
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// rollback: balance untouched, no journal row
	var got User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(999)))

	var count int64
	require.NoError(t, db.Model(&WalletHistory{}).Where("user_id = ?", u.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestLockUsersMissingUser(t *testing.T) {
	db := testutil.NewTestDB(t, &User{}, &WalletHistory{})
	ledger := NewLedger(db)
	u := newUser(t, db, 100)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.LockUsers(context.Background(), tx, []string{u.ID, uuid.New().String()})
		return err
	})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAppendMirrorLeavesBalanceAlone(t *testing.T) {
	db := testutil.NewTestDB(t, &User{}, &WalletHistory{})
	ledger := NewLedger(db)
	u := newUser(t, db, 700)
	ref := uuid.New().String()

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := ledger.LockUser(context.Background(), tx, u.ID)
		require.NoError(t, err)
		_, err = ledger.AppendMirror(context.Background(), tx, locked, decimal.NewFromInt(5000), Entry{
			Type: HistoryDeposit, ReferenceID: ref,
		})
		return err
	})
	require.NoError(t, err)

	var got User
	require.NoError(t, db.First(&got, "id = ?", u.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(700)))

	mirror, err := ledger.MirrorForUpdate(context.Background(), db, ref, HistoryDeposit)
	require.NoError(t, err)
	require.Equal(t, HistoryStatusPending, mirror.Status)
	require.True(t, mirror.BalanceBefore.Equal(mirror.BalanceAfter))
}
