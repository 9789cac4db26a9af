package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeDeposit    = "DEPOSIT"
	TypeWithdrawal = "WITHDRAWAL"

	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusRejected  = "REJECTED"
	StatusFailed    = "FAILED"
)

// Transaction is a deposit or withdrawal request awaiting admin review.
// Deposits credit the balance only at approval; withdrawals debit it at
// request time and refund it on rejection.
type Transaction struct {
	ID            string          `gorm:"column:id;primaryKey;type:uuid"`
	UserID        string          `gorm:"column:user_id;type:uuid;not null;index"`
	Type          string          `gorm:"column:type;type:varchar(20);not null;index"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(38,0);not null"`
	Status        string          `gorm:"column:status;type:varchar(20);not null;index"`
	TxHash        string          `gorm:"column:tx_hash;type:varchar(128)"` // external chain reference, deposits only
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(128)"`
	Description   string          `gorm:"column:description;type:varchar(255)"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
}
