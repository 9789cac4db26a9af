package bet

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "PENDING"
	StatusWon       = "WON"
	StatusLost      = "LOST"
	StatusCancelled = "CANCELLED"
)

const (
	CommissionPlatform = "PLATFORM"
	CommissionCreator  = "CREATOR"
	CommissionReferral = "REFERRAL"

	CommissionPending   = "PENDING"
	CommissionPaid      = "PAID"
	CommissionCancelled = "CANCELLED"
)

// Fixed commission rates, percent of stake, floor-rounded.
const (
	PlatformRatePct = 6
	CreatorRatePct  = 5
	ReferralRatePct = 4
)

type Bet struct {
	ID        string          `gorm:"column:id;primaryKey;type:uuid"`
	UserID    string          `gorm:"column:user_id;type:uuid;not null;index"`
	EventID   string          `gorm:"column:event_id;type:uuid;not null;index"`
	OutcomeID string          `gorm:"column:outcome_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(38,0);not null"`
	Status    string          `gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

// PendingCommission is a liability against the pool, accrued at placement and
// realized (or voided) only at settlement.
type PendingCommission struct {
	ID        string          `gorm:"column:id;primaryKey;type:uuid"`
	EventID   string          `gorm:"column:event_id;type:uuid;not null;index"`
	BetID     string          `gorm:"column:bet_id;type:uuid;not null;index"`
	UserID    string          `gorm:"column:user_id;type:uuid;not null;index"` // recipient
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(38,0);not null"`
	Type      string          `gorm:"column:type;type:varchar(20);not null"`
	Status    string          `gorm:"column:status;type:varchar(20);not null;index"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

// EventReferral links a bettor to a referrer for one event, created at most
// once per (event, referred user) pair at first bet.
type EventReferral struct {
	ID         string    `gorm:"column:id;primaryKey;type:uuid"`
	EventID    string    `gorm:"column:event_id;type:uuid;not null;uniqueIndex:idx_event_referred"`
	ReferrerID string    `gorm:"column:referrer_id;type:uuid;not null;index"`
	ReferredID string    `gorm:"column:referred_id;type:uuid;not null;uniqueIndex:idx_event_referred"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}
