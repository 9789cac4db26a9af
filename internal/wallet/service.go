package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/account"
	"betmarket/internal/database"
	"betmarket/internal/metrics"
	"betmarket/internal/money"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("transaction is not pending")
	ErrAmountOutOfRange    = errors.New("amount out of allowed range")
	ErrTxHashRequired      = errors.New("transaction hash is required")
)

var (
	MinAmount = decimal.NewFromInt(1_000)
	MaxAmount = decimal.NewFromInt(1_000_000_000)
)

type Service struct {
	db     *gorm.DB
	ledger *account.Ledger
	log    *zap.Logger
}

func NewService(db *gorm.DB, ledger *account.Ledger, log *zap.Logger) *Service {
	return &Service{db: db, ledger: ledger, log: log}
}

type RequestResult struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// RequestDeposit records a pending deposit and its mirror journal row. The
// balance is untouched until an admin approves; the mirror row keeps
// balanceBefore == balanceAfter until then.
func (s *Service) RequestDeposit(ctx context.Context, userID, amountStr, txHash string) (*RequestResult, error) {
	amount, err := s.parseAmount(amountStr)
	if err != nil {
		return nil, err
	}
	if txHash == "" {
		return nil, ErrTxHashRequired
	}

	var result RequestResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.ledger.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		txn := &Transaction{
			ID:            uuid.New().String(),
			UserID:        user.ID,
			Type:          TypeDeposit,
			Amount:        amount,
			Status:        StatusPending,
			TxHash:        txHash,
			WalletAddress: user.WalletAddress,
			Description:   fmt.Sprintf("deposit request for %s units", amount.String()),
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		if _, err := s.ledger.AppendMirror(ctx, tx, user, amount, account.Entry{
			Type:        account.HistoryDeposit,
			ReferenceID: txn.ID,
			Description: txn.Description,
			Status:      account.HistoryStatusPending,
		}); err != nil {
			return err
		}

		result = RequestResult{TransactionID: txn.ID, Amount: amount, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit requested", zap.String("transaction_id", result.TransactionID), zap.String("user_id", userID))
	return &result, nil
}

// RequestWithdrawal debits the balance up front, so the funds cannot be spent
// while the request waits for review. Rejection refunds the debit.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, amountStr string) (*RequestResult, error) {
	amount, err := s.parseAmount(amountStr)
	if err != nil {
		return nil, err
	}

	var result RequestResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.ledger.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Status != account.StatusActive {
			return account.ErrAccountNotActive
		}

		txn := &Transaction{
			ID:            uuid.New().String(),
			UserID:        user.ID,
			Type:          TypeWithdrawal,
			Amount:        amount,
			Status:        StatusPending,
			WalletAddress: user.WalletAddress,
			Description:   fmt.Sprintf("withdrawal request for %s units", amount.String()),
		}
		if err := tx.Create(txn).Error; err != nil {
			return err
		}

		if _, err := s.ledger.Debit(ctx, tx, user, amount, account.Entry{
			Type:        account.HistoryWithdrawal,
			ReferenceID: txn.ID,
			Description: txn.Description,
			Status:      account.HistoryStatusPending,
		}); err != nil {
			return err
		}

		result = RequestResult{TransactionID: txn.ID, Amount: amount, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal requested", zap.String("transaction_id", result.TransactionID), zap.String("user_id", userID))
	return &result, nil
}

type ReviewResult struct {
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"newBalance"`
}

// ApproveDeposit credits the user and completes the mirror journal row. The
// mirror's before/after pair is rewritten at this point: the balance mutation
// happens now, not at request time.
func (s *Service) ApproveDeposit(ctx context.Context, transactionID string) (*ReviewResult, error) {
	var result ReviewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.lockPending(ctx, tx, transactionID, TypeDeposit)
		if err != nil {
			return err
		}
		user, err := s.ledger.LockUser(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}

		before := user.Balance
		after := before.Add(txn.Amount)
		if err := tx.Model(&account.User{}).Where("id = ?", user.ID).Update("balance", after).Error; err != nil {
			return err
		}
		user.Balance = after

		if err := tx.Model(&Transaction{}).Where("id = ?", txn.ID).Update("status", StatusConfirmed).Error; err != nil {
			return err
		}

		mirror, err := s.ledger.MirrorForUpdate(ctx, tx, txn.ID, account.HistoryDeposit)
		if err != nil {
			return err
		}
		if err := tx.Model(&account.WalletHistory{}).Where("id = ?", mirror.ID).Updates(map[string]interface{}{
			"status":         account.HistoryStatusCompleted,
			"balance_before": before,
			"balance_after":  after,
		}).Error; err != nil {
			return err
		}

		result = ReviewResult{TransactionID: txn.ID, Status: StatusConfirmed, Amount: txn.Amount, NewBalance: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsReviewed.WithLabelValues("deposit", "approved").Inc()
	s.log.Info("deposit approved", zap.String("transaction_id", transactionID))
	return &result, nil
}

// RejectDeposit flips statuses only; no balance was ever applied.
func (s *Service) RejectDeposit(ctx context.Context, transactionID string) (*ReviewResult, error) {
	var result ReviewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.lockPending(ctx, tx, transactionID, TypeDeposit)
		if err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).Where("id = ?", txn.ID).Update("status", StatusRejected).Error; err != nil {
			return err
		}
		mirror, err := s.ledger.MirrorForUpdate(ctx, tx, txn.ID, account.HistoryDeposit)
		if err != nil {
			return err
		}
		if err := tx.Model(&account.WalletHistory{}).Where("id = ?", mirror.ID).
			Update("status", account.HistoryStatusCancelled).Error; err != nil {
			return err
		}
		result = ReviewResult{TransactionID: txn.ID, Status: StatusRejected, Amount: txn.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsReviewed.WithLabelValues("deposit", "rejected").Inc()
	s.log.Info("deposit rejected", zap.String("transaction_id", transactionID))
	return &result, nil
}

// ApproveWithdrawal flips statuses; the debit was already applied at request
// time.
func (s *Service) ApproveWithdrawal(ctx context.Context, transactionID string) (*ReviewResult, error) {
	var result ReviewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.lockPending(ctx, tx, transactionID, TypeWithdrawal)
		if err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).Where("id = ?", txn.ID).Update("status", StatusConfirmed).Error; err != nil {
			return err
		}
		mirror, err := s.ledger.MirrorForUpdate(ctx, tx, txn.ID, account.HistoryWithdrawal)
		if err != nil {
			return err
		}
		if err := tx.Model(&account.WalletHistory{}).Where("id = ?", mirror.ID).
			Update("status", account.HistoryStatusCompleted).Error; err != nil {
			return err
		}
		result = ReviewResult{TransactionID: txn.ID, Status: StatusConfirmed, Amount: txn.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsReviewed.WithLabelValues("withdrawal", "approved").Inc()
	s.log.Info("withdrawal approved", zap.String("transaction_id", transactionID))
	return &result, nil
}

// RejectWithdrawal refunds the up-front debit: the mirror row is cancelled
// and a fresh REFUND journal row records the credit back.
func (s *Service) RejectWithdrawal(ctx context.Context, transactionID string) (*ReviewResult, error) {
	var result ReviewResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.lockPending(ctx, tx, transactionID, TypeWithdrawal)
		if err != nil {
			return err
		}
		if err := tx.Model(&Transaction{}).Where("id = ?", txn.ID).Update("status", StatusRejected).Error; err != nil {
			return err
		}
		mirror, err := s.ledger.MirrorForUpdate(ctx, tx, txn.ID, account.HistoryWithdrawal)
		if err != nil {
			return err
		}
		if err := tx.Model(&account.WalletHistory{}).Where("id = ?", mirror.ID).
			Update("status", account.HistoryStatusCancelled).Error; err != nil {
			return err
		}

		user, err := s.ledger.LockUser(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, tx, user, txn.Amount, account.Entry{
			Type:        account.HistoryRefund,
			ReferenceID: txn.ID,
			Description: "refund for rejected withdrawal",
		}); err != nil {
			return err
		}

		result = ReviewResult{TransactionID: txn.ID, Status: StatusRejected, Amount: txn.Amount, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsReviewed.WithLabelValues("withdrawal", "rejected").Inc()
	s.log.Info("withdrawal rejected and refunded", zap.String("transaction_id", transactionID))
	return &result, nil
}

// ListPending returns pending requests of one type for the admin queue.
func (s *Service) ListPending(ctx context.Context, txType string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []Transaction
	err := s.db.WithContext(ctx).
		Where("type = ? AND status = ?", txType, StatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *Service) lockPending(ctx context.Context, tx *gorm.DB, transactionID, txType string) (*Transaction, error) {
	var txn Transaction
	err := tx.WithContext(ctx).Scopes(database.LockForUpdate).
		Where("id = ? AND type = ?", transactionID, txType).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if txn.Status != StatusPending {
		return nil, ErrInvalidTransition
	}
	return &txn, nil
}

func (s *Service) parseAmount(amountStr string) (decimal.Decimal, error) {
	amount, err := money.ParsePositive(amountStr)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThan(MinAmount) || amount.GreaterThan(MaxAmount) {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return amount, nil
}
