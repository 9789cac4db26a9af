package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/account"
	"betmarket/internal/testutil"
)

func newService(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()
	db := testutil.NewTestDB(t, &account.User{}, &account.WalletHistory{}, &Transaction{})
	return db, NewService(db, account.NewLedger(db), zap.NewNop())
}

func seedUser(t *testing.T, db *gorm.DB, balance int64) *account.User {
	t.Helper()
	u := &account.User{
		ID:            uuid.New().String(),
		Username:      "user-" + uuid.New().String()[:8],
		Role:          "USER",
		Status:        account.StatusActive,
		Balance:       decimal.NewFromInt(balance),
		ReferralCode:  "ref-" + uuid.New().String()[:8],
		WalletAddress: "0xabc",
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func mirrorRow(t *testing.T, db *gorm.DB, transactionID string) *account.WalletHistory {
	t.Helper()
	var h account.WalletHistory
	require.NoError(t, db.First(&h, "reference_id = ?", transactionID).Error)
	return &h
}

func TestDepositLifecycle(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 500)

	req, err := svc.RequestDeposit(context.Background(), user.ID, "2000", "0xhash")
	require.NoError(t, err)
	// no credit before approval
	require.True(t, req.NewBalance.Equal(decimal.NewFromInt(500)))

	mirror := mirrorRow(t, db, req.TransactionID)
	require.Equal(t, account.HistoryStatusPending, mirror.Status)
	require.True(t, mirror.BalanceBefore.Equal(mirror.BalanceAfter))

	approved, err := svc.ApproveDeposit(context.Background(), req.TransactionID)
	require.NoError(t, err)
	require.True(t, approved.NewBalance.Equal(decimal.NewFromInt(2500)))

	var got account.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(2500)))

	// mirror rewritten with the approval-time before/after pair
	mirror = mirrorRow(t, db, req.TransactionID)
	require.Equal(t, account.HistoryStatusCompleted, mirror.Status)
	require.True(t, mirror.BalanceBefore.Equal(decimal.NewFromInt(500)))
	require.True(t, mirror.BalanceAfter.Equal(decimal.NewFromInt(2500)))
	require.True(t, mirror.BalanceAfter.Sub(mirror.BalanceBefore).Equal(mirror.Amount))

	// a reviewed transaction cannot be reviewed again
	_, err = svc.ApproveDeposit(context.Background(), req.TransactionID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.RejectDeposit(context.Background(), req.TransactionID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectDepositLeavesBalanceAlone(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 500)

	req, err := svc.RequestDeposit(context.Background(), user.ID, "2000", "0xhash")
	require.NoError(t, err)

	rejected, err := svc.RejectDeposit(context.Background(), req.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	var got account.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(500)))

	mirror := mirrorRow(t, db, req.TransactionID)
	require.Equal(t, account.HistoryStatusCancelled, mirror.Status)
	require.True(t, mirror.BalanceBefore.Equal(mirror.BalanceAfter))
}

func TestDepositValidation(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 0)

	_, err := svc.RequestDeposit(context.Background(), user.ID, "2000", "")
	require.ErrorIs(t, err, ErrTxHashRequired)

	for _, amount := range []string{"999", "1000000001", "-5", "1.5", "x"} {
		_, err := svc.RequestDeposit(context.Background(), user.ID, amount, "0xhash")
		require.Error(t, err, "amount %s must be rejected", amount)
	}
}

func TestWithdrawalApproval(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 5000)

	req, err := svc.RequestWithdrawal(context.Background(), user.ID, "3000")
	require.NoError(t, err)
	// debited up front
	require.True(t, req.NewBalance.Equal(decimal.NewFromInt(2000)))

	mirror := mirrorRow(t, db, req.TransactionID)
	require.Equal(t, account.HistoryStatusPending, mirror.Status)
	require.True(t, mirror.Amount.Equal(decimal.NewFromInt(-3000)))

	approved, err := svc.ApproveWithdrawal(context.Background(), req.TransactionID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, approved.Status)

	var got account.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(2000)))

	mirror = mirrorRow(t, db, req.TransactionID)
	require.Equal(t, account.HistoryStatusCompleted, mirror.Status)
}

func TestWithdrawalRejectionRefunds(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 5000)

	req, err := svc.RequestWithdrawal(context.Background(), user.ID, "3000")
	require.NoError(t, err)

	rejected, err := svc.RejectWithdrawal(context.Background(), req.TransactionID)
	require.NoError(t, err)
	require.True(t, rejected.NewBalance.Equal(decimal.NewFromInt(5000)))

	var got account.User
	require.NoError(t, db.First(&got, "id = ?", user.ID).Error)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(5000)))

	// cancelled mirror plus a refund row, netting the journal to zero
	var rows []account.WalletHistory
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&rows).Error)
	require.Len(t, rows, 2)
	net := decimal.Zero
	for _, r := range rows {
		if r.Status != account.HistoryStatusCancelled {
			net = net.Add(r.Amount)
		}
	}
	require.True(t, net.Equal(decimal.NewFromInt(3000)))
}

func TestWithdrawalRequiresFunds(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 2999)

	_, err := svc.RequestWithdrawal(context.Background(), user.ID, "3000")
	require.ErrorIs(t, err, account.ErrInsufficientFunds)

	var count int64
	require.NoError(t, db.Model(&Transaction{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestWithdrawalRequiresActiveAccount(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 5000)
	require.NoError(t, db.Model(&account.User{}).Where("id = ?", user.ID).
		Update("status", account.StatusSuspended).Error)

	_, err := svc.RequestWithdrawal(context.Background(), user.ID, "3000")
	require.ErrorIs(t, err, account.ErrAccountNotActive)
}

func TestListPending(t *testing.T) {
	db, svc := newService(t)
	user := seedUser(t, db, 50_000)

	d1, err := svc.RequestDeposit(context.Background(), user.ID, "1000", "0x1")
	require.NoError(t, err)
	_, err = svc.RequestWithdrawal(context.Background(), user.ID, "2000")
	require.NoError(t, err)

	deposits, err := svc.ListPending(context.Background(), TypeDeposit, 0)
	require.NoError(t, err)
	require.Len(t, deposits, 1)
	require.Equal(t, d1.TransactionID, deposits[0].ID)

	withdrawals, err := svc.ListPending(context.Background(), TypeWithdrawal, 0)
	require.NoError(t, err)
	require.Len(t, withdrawals, 1)

	_, err = svc.ApproveDeposit(context.Background(), d1.TransactionID)
	require.NoError(t, err)
	deposits, err = svc.ListPending(context.Background(), TypeDeposit, 0)
	require.NoError(t, err)
	require.Empty(t, deposits)

	_, err = svc.ApproveDeposit(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, ErrTransactionNotFound)
}
