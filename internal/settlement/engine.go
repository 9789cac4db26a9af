package settlement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/account"
	"betmarket/internal/bet"
	"betmarket/internal/database"
	"betmarket/internal/market"
	"betmarket/internal/metrics"
	"betmarket/internal/money"
)

var (
	// ErrAlreadySettled covers any attempt to settle an event that is not
	// ACTIVE anymore; the second of two concurrent settlements observes this
	// after waiting on the event row lock.
	ErrAlreadySettled = errors.New("event is not active")

	// ErrInvalidSettlement means an arithmetic guard tripped; the whole
	// transaction rolls back and the event remains ACTIVE.
	ErrInvalidSettlement = errors.New("settlement arithmetic guard failed")
)

// Engine resolves events: it computes pool totals, winner payouts, commission
// payouts and loser write-offs, and commits them in one transaction. Every
// row read-then-written is locked, in a fixed order: event, bets,
// commissions, users (users in ascending id).
type Engine struct {
	db     *gorm.DB
	ledger *account.Ledger
	log    *zap.Logger
}

func NewEngine(db *gorm.DB, ledger *account.Ledger, log *zap.Logger) *Engine {
	return &Engine{db: db, ledger: ledger, log: log}
}

type Result struct {
	EventID          string          `json:"eventId"`
	Status           string          `json:"status"`
	WinningOutcomeID *string         `json:"winningOutcomeId,omitempty"`
	TotalPool        decimal.Decimal `json:"totalPool"`
	TotalWinning     decimal.Decimal `json:"totalWinningAmount"`
	TotalCommission  decimal.Decimal `json:"totalCommission"`
	PrizePool        decimal.Decimal `json:"prizePool"`
	Dust             decimal.Decimal `json:"dust"`
	WinnersPaid      int             `json:"winnersPaid"`
	LosersMarked     int             `json:"losersMarked"`
	CommissionsPaid  int             `json:"commissionsPaid"`
	BetsRefunded     int             `json:"betsRefunded"`
}

// Resolve settles an event. A nil winningOutcomeID voids the market: every
// bettor is refunded in full and accrued commissions are cancelled, never
// paid. The same refund path handles degenerate markets (fewer than two bets,
// or every bet on one outcome) where no meaningful settlement exists.
func (e *Engine) Resolve(ctx context.Context, eventID string, winningOutcomeID *string) (*Result, error) {
	var result *Result
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev market.Event
		if err := tx.Scopes(database.LockForUpdate).Where("id = ?", eventID).First(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return market.ErrEventNotFound
			}
			return err
		}
		if ev.Status != market.EventActive {
			return ErrAlreadySettled
		}

		if winningOutcomeID != nil {
			var n int64
			if err := tx.Model(&market.Outcome{}).
				Where("id = ? AND event_id = ?", *winningOutcomeID, eventID).
				Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return market.ErrOutcomeNotFound
			}
		}

		var bets []bet.Bet
		if err := tx.Scopes(database.LockForUpdate).
			Where("event_id = ? AND status = ?", eventID, bet.StatusPending).
			Order("id ASC").
			Find(&bets).Error; err != nil {
			return err
		}

		var commissions []bet.PendingCommission
		if err := tx.Scopes(database.LockForUpdate).
			Where("event_id = ? AND status = ?", eventID, bet.CommissionPending).
			Order("id ASC").
			Find(&commissions).Error; err != nil {
			return err
		}

		if winningOutcomeID == nil || isDegenerate(bets) {
			r, err := e.refundAll(ctx, tx, &ev, bets, commissions)
			if err != nil {
				return err
			}
			result = r
			return nil
		}

		r, err := e.payOut(ctx, tx, &ev, *winningOutcomeID, bets, commissions)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		metrics.SettlementFailures.Inc()
		return nil, err
	}

	if result.Status == market.EventResolved {
		metrics.EventsSettled.WithLabelValues("resolved").Inc()
	} else {
		metrics.EventsSettled.WithLabelValues("cancelled").Inc()
	}
	e.log.Info("event settled",
		zap.String("event_id", eventID),
		zap.String("status", result.Status),
		zap.String("total_pool", result.TotalPool.String()),
		zap.String("prize_pool", result.PrizePool.String()),
		zap.String("dust", result.Dust.String()),
		zap.Int("winners_paid", result.WinnersPaid),
		zap.Int("commissions_paid", result.CommissionsPaid),
		zap.Int("bets_refunded", result.BetsRefunded))
	return result, nil
}

// isDegenerate reports a market with no opposing positions.
func isDegenerate(bets []bet.Bet) bool {
	if len(bets) < 2 {
		return true
	}
	first := bets[0].OutcomeID
	for _, b := range bets[1:] {
		if b.OutcomeID != first {
			return false
		}
	}
	return true
}

// refundAll voids the market: full refunds, bets cancelled, commissions
// cancelled without ever being paid, event cancelled.
func (e *Engine) refundAll(ctx context.Context, tx *gorm.DB, ev *market.Event, bets []bet.Bet, commissions []bet.PendingCommission) (*Result, error) {
	userIDs := make([]string, 0, len(bets))
	seen := map[string]bool{}
	totalPool := decimal.Zero
	for _, b := range bets {
		totalPool = totalPool.Add(b.Amount)
		if !seen[b.UserID] {
			seen[b.UserID] = true
			userIDs = append(userIDs, b.UserID)
		}
	}
	sort.Strings(userIDs)

	users, err := e.ledger.LockUsers(ctx, tx, userIDs)
	if err != nil {
		return nil, err
	}

	for i := range bets {
		b := &bets[i]
		if _, err := e.ledger.Credit(ctx, tx, users[b.UserID], b.Amount, account.Entry{
			Type:        account.HistoryRefund,
			ReferenceID: b.ID,
			Description: "refund for voided event " + ev.ID,
		}); err != nil {
			return nil, err
		}
		if err := tx.Model(&bet.Bet{}).Where("id = ?", b.ID).Update("status", bet.StatusCancelled).Error; err != nil {
			return nil, err
		}
	}

	for i := range commissions {
		if err := tx.Model(&bet.PendingCommission{}).
			Where("id = ?", commissions[i].ID).
			Update("status", bet.CommissionCancelled).Error; err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := tx.Model(&market.Event{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"status":      market.EventCancelled,
		"resolved_at": now,
	}).Error; err != nil {
		return nil, err
	}

	return &Result{
		EventID:      ev.ID,
		Status:       market.EventCancelled,
		TotalPool:    totalPool,
		PrizePool:    decimal.Zero,
		Dust:         decimal.Zero,
		BetsRefunded: len(bets),
	}, nil
}

// payOut performs the normal settlement: prizePool = totalPool minus the
// accrued commissions, winners paid floor(stake * prizePool / totalWinning),
// losers written off, commissions credited and marked PAID.
func (e *Engine) payOut(ctx context.Context, tx *gorm.DB, ev *market.Event, winningOutcomeID string, bets []bet.Bet, commissions []bet.PendingCommission) (*Result, error) {
	totalPool := decimal.Zero
	totalWinning := decimal.Zero
	var winners []*bet.Bet
	var losers []*bet.Bet
	for i := range bets {
		b := &bets[i]
		totalPool = totalPool.Add(b.Amount)
		if b.OutcomeID == winningOutcomeID {
			totalWinning = totalWinning.Add(b.Amount)
			winners = append(winners, b)
		} else {
			losers = append(losers, b)
		}
	}

	totalCommission := decimal.Zero
	for i := range commissions {
		totalCommission = totalCommission.Add(commissions[i].Amount)
	}

	prizePool := totalPool.Sub(totalCommission)
	if prizePool.IsNegative() {
		return nil, ErrInvalidSettlement
	}
	// Cannot happen while stakes are positive; asserted anyway so a broken
	// invariant aborts instead of dividing by zero.
	if len(winners) > 0 && !totalWinning.IsPositive() {
		return nil, ErrInvalidSettlement
	}

	userIDs := make([]string, 0, len(winners)+len(commissions))
	seen := map[string]bool{}
	for _, w := range winners {
		if !seen[w.UserID] {
			seen[w.UserID] = true
			userIDs = append(userIDs, w.UserID)
		}
	}
	for i := range commissions {
		if !seen[commissions[i].UserID] {
			seen[commissions[i].UserID] = true
			userIDs = append(userIDs, commissions[i].UserID)
		}
	}
	sort.Strings(userIDs)

	users, err := e.ledger.LockUsers(ctx, tx, userIDs)
	if err != nil {
		return nil, err
	}

	distributed := decimal.Zero
	for _, w := range winners {
		prize := money.MulDivFloor(w.Amount, prizePool, totalWinning)
		if prize.IsPositive() {
			if _, err := e.ledger.Credit(ctx, tx, users[w.UserID], prize, account.Entry{
				Type:        account.HistoryWin,
				ReferenceID: w.ID,
				Description: "prize for event " + ev.ID,
			}); err != nil {
				return nil, err
			}
			distributed = distributed.Add(prize)
		}
		if err := tx.Model(&bet.Bet{}).Where("id = ?", w.ID).Update("status", bet.StatusWon).Error; err != nil {
			return nil, err
		}
	}

	for _, l := range losers {
		// Stake was debited at placement; nothing moves here.
		if err := tx.Model(&bet.Bet{}).Where("id = ?", l.ID).Update("status", bet.StatusLost).Error; err != nil {
			return nil, err
		}
	}

	for i := range commissions {
		c := &commissions[i]
		if c.Amount.IsPositive() {
			if _, err := e.ledger.Credit(ctx, tx, users[c.UserID], c.Amount, account.Entry{
				Type:        account.HistoryCommission,
				ReferenceID: c.BetID,
				Description: "commission for event " + ev.ID,
			}); err != nil {
				return nil, err
			}
		}
		if err := tx.Model(&bet.PendingCommission{}).Where("id = ?", c.ID).Update("status", bet.CommissionPaid).Error; err != nil {
			return nil, err
		}
	}

	now := time.Now()
	if err := tx.Model(&market.Event{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"status":             market.EventResolved,
		"winning_outcome_id": winningOutcomeID,
		"resolved_at":        now,
	}).Error; err != nil {
		return nil, err
	}

	// Flooring leaves at most totalWinning-1 units undistributed; that dust
	// stays with the platform pool and is reported, not paid.
	dust := prizePool.Sub(distributed)

	return &Result{
		EventID:          ev.ID,
		Status:           market.EventResolved,
		WinningOutcomeID: &winningOutcomeID,
		TotalPool:        totalPool,
		TotalWinning:     totalWinning,
		TotalCommission:  totalCommission,
		PrizePool:        prizePool,
		Dust:             dust,
		WinnersPaid:      len(winners),
		LosersMarked:     len(losers),
		CommissionsPaid:  len(commissions),
	}, nil
}
