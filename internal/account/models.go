package account

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusBanned    = "BANNED"
)

// Wallet history entry types.
const (
	HistoryDeposit    = "DEPOSIT"
	HistoryWithdrawal = "WITHDRAWAL"
	HistoryBet        = "BET"
	HistoryWin        = "WIN"
	HistoryRefund     = "REFUND"
	HistoryCommission = "COMMISSION"
)

// Wallet history statuses. Entries are COMPLETED the moment they are written,
// except the deposit/withdrawal mirror rows which track their transaction.
const (
	HistoryStatusPending   = "PENDING"
	HistoryStatusCompleted = "COMPLETED"
	HistoryStatusCancelled = "CANCELLED"
)

type User struct {
	ID            string          `gorm:"column:id;primaryKey;type:uuid"`
	Username      string          `gorm:"column:username;type:varchar(100);not null;unique"`
	Role          string          `gorm:"column:role;type:varchar(20);not null"` // "USER", "ADMIN"
	Status        string          `gorm:"column:status;type:varchar(20);not null"`
	Balance       decimal.Decimal `gorm:"column:balance;type:numeric(38,0);not null"`
	ReferralCode  string          `gorm:"column:referral_code;type:varchar(32);uniqueIndex"`
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(128)"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}

// WalletHistory is the append-only journal. Rows are never deleted; the only
// field ever updated after creation is the status/balance_after pair on a
// deposit or withdrawal mirror row as its transaction is decided.
type WalletHistory struct {
	ID            string          `gorm:"column:id;primaryKey;type:uuid"`
	UserID        string          `gorm:"column:user_id;type:uuid;not null;index"`
	Type          string          `gorm:"column:type;type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(38,0);not null"` // signed, negative for debits
	BalanceBefore decimal.Decimal `gorm:"column:balance_before;type:numeric(38,0);not null"`
	BalanceAfter  decimal.Decimal `gorm:"column:balance_after;type:numeric(38,0);not null"`
	Status        string          `gorm:"column:status;type:varchar(20);not null"`
	ReferenceID   *string         `gorm:"column:reference_id;type:uuid;index"`
	Description   string          `gorm:"column:description;type:varchar(255)"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}
