package market

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventDraft           = "DRAFT"
	EventPendingApproval = "PENDING_APPROVAL"
	EventActive          = "ACTIVE"
	EventRejected        = "REJECTED"
	EventClosed          = "CLOSED"
	EventResolved        = "RESOLVED"
	EventCancelled       = "CANCELLED"
)

type Event struct {
	ID               string     `gorm:"column:id;primaryKey;type:uuid"`
	CreatorID        string     `gorm:"column:creator_id;type:uuid;not null;index"`
	Title            string     `gorm:"column:title;type:varchar(255);not null"`
	Description      string     `gorm:"column:description;type:text"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;index"`
	BettingDeadline  time.Time  `gorm:"column:betting_deadline;not null"`
	WinningOutcomeID *string    `gorm:"column:winning_outcome_id;type:uuid"`
	ResolvedAt       *time.Time `gorm:"column:resolved_at"`
	CreatedAt        time.Time  `gorm:"column:created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

// Outcome carries denormalized stake counters for display. Settlement never
// trusts them; it recomputes totals from the live bet rows.
type Outcome struct {
	ID          string          `gorm:"column:id;primaryKey;type:uuid"`
	EventID     string          `gorm:"column:event_id;type:uuid;not null;index"`
	Title       string          `gorm:"column:title;type:varchar(255);not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:numeric(38,0);not null"`
	TotalBets   int64           `gorm:"column:total_bets;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at"`
}
