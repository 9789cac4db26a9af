package bet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/account"
	"betmarket/internal/database"
	"betmarket/internal/market"
	"betmarket/internal/metrics"
	"betmarket/internal/money"
)

var (
	ErrBetNotFound       = errors.New("bet not found")
	ErrNotBetOwner       = errors.New("bet belongs to another user")
	ErrBetNotCancellable = errors.New("bet can no longer be cancelled")
	ErrBettingClosed     = errors.New("event is not open for betting")
	ErrAmountOutOfRange  = errors.New("bet amount out of allowed range")
)

var (
	MinBet = decimal.NewFromInt(1_000)
	MaxBet = decimal.NewFromInt(1_000_000_000)
)

type Service struct {
	db                *gorm.DB
	ledger            *account.Ledger
	platformAccountID string
	log               *zap.Logger
}

func NewService(db *gorm.DB, ledger *account.Ledger, platformAccountID string, log *zap.Logger) *Service {
	return &Service{db: db, ledger: ledger, platformAccountID: platformAccountID, log: log}
}

type PlaceRequest struct {
	UserID       string
	EventID      string
	OutcomeID    string
	Amount       string // wire decimal string
	ReferralCode string
}

type PlaceResult struct {
	BetID      string          `json:"betId"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// Place debits the stake, records the bet and its journal row, accrues the
// commission liabilities and attributes a referral, all in one transaction.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		return nil, err
	}
	if amount.LessThan(MinBet) || amount.GreaterThan(MaxBet) {
		return nil, ErrAmountOutOfRange
	}

	var result PlaceResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ev market.Event
		if err := tx.Where("id = ?", req.EventID).First(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return market.ErrEventNotFound
			}
			return err
		}
		if ev.Status != market.EventActive || !time.Now().Before(ev.BettingDeadline) {
			return ErrBettingClosed
		}

		// Outcome row is written (display counters), so it is locked.
		var outcome market.Outcome
		if err := tx.Scopes(database.LockForUpdate).
			Where("id = ? AND event_id = ?", req.OutcomeID, req.EventID).
			First(&outcome).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return market.ErrOutcomeNotFound
			}
			return err
		}

		user, err := s.ledger.LockUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if user.Status != account.StatusActive {
			return account.ErrAccountNotActive
		}

		newBet := &Bet{
			ID:        uuid.New().String(),
			UserID:    user.ID,
			EventID:   ev.ID,
			OutcomeID: outcome.ID,
			Amount:    amount,
			Status:    StatusPending,
		}
		if err := tx.Create(newBet).Error; err != nil {
			return err
		}

		if _, err := s.ledger.Debit(ctx, tx, user, amount, account.Entry{
			Type:        account.HistoryBet,
			ReferenceID: newBet.ID,
			Description: fmt.Sprintf("bet on event %s", ev.ID),
		}); err != nil {
			return err
		}

		referral, err := s.attributeReferral(ctx, tx, &ev, user, req.ReferralCode)
		if err != nil {
			return err
		}
		if err := s.accrueCommissions(ctx, tx, &ev, newBet, referral); err != nil {
			return err
		}

		if err := tx.Model(&market.Outcome{}).Where("id = ?", outcome.ID).Updates(map[string]interface{}{
			"total_amount": outcome.TotalAmount.Add(amount),
			"total_bets":   gorm.Expr("total_bets + 1"),
		}).Error; err != nil {
			return err
		}

		result = PlaceResult{BetID: newBet.ID, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BetsPlaced.Inc()
	s.log.Info("bet placed",
		zap.String("bet_id", result.BetID),
		zap.String("user_id", req.UserID),
		zap.String("event_id", req.EventID),
		zap.String("amount", amount.String()))
	return &result, nil
}

// attributeReferral resolves an optional referral code and creates the
// per-event link on first use. Self-referrals and unknown codes are ignored,
// not rejected; the bet itself is fine. Returns the link in effect for this
// bettor and event, existing or new, nil when there is none.
func (s *Service) attributeReferral(ctx context.Context, tx *gorm.DB, ev *market.Event, bettor *account.User, code string) (*EventReferral, error) {
	var existing EventReferral
	err := tx.WithContext(ctx).
		Where("event_id = ? AND referred_id = ?", ev.ID, bettor.ID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if code == "" {
		return nil, nil
	}
	referrer, err := s.ledger.GetUserByReferralCode(ctx, tx, code)
	if err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if referrer.ID == bettor.ID {
		return nil, nil
	}

	link := &EventReferral{
		ID:         uuid.New().String(),
		EventID:    ev.ID,
		ReferrerID: referrer.ID,
		ReferredID: bettor.ID,
	}
	if err := tx.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) accrueCommissions(ctx context.Context, tx *gorm.DB, ev *market.Event, b *Bet, referral *EventReferral) error {
	type accrual struct {
		recipient string
		ctype     string
		ratePct   int64
	}
	accruals := []accrual{
		{recipient: s.platformAccountID, ctype: CommissionPlatform, ratePct: PlatformRatePct},
		{recipient: ev.CreatorID, ctype: CommissionCreator, ratePct: CreatorRatePct},
	}
	if referral != nil {
		accruals = append(accruals, accrual{recipient: referral.ReferrerID, ctype: CommissionReferral, ratePct: ReferralRatePct})
	}

	for _, a := range accruals {
		if a.recipient == "" {
			continue
		}
		c := &PendingCommission{
			ID:      uuid.New().String(),
			EventID: ev.ID,
			BetID:   b.ID,
			UserID:  a.recipient,
			Amount:  money.Percent(b.Amount, a.ratePct),
			Type:    a.ctype,
			Status:  CommissionPending,
		}
		if err := tx.WithContext(ctx).Create(c).Error; err != nil {
			return err
		}
	}
	return nil
}

type CancelResult struct {
	BetID        string          `json:"betId"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	NewBalance   decimal.Decimal `json:"newBalance"`
}

// Cancel refunds a still-pending bet while the event is still open. The bet
// row stays behind as CANCELLED and its accrued commissions are voided so the
// settlement pool stays conserved.
func (s *Service) Cancel(ctx context.Context, userID, betID string) (*CancelResult, error) {
	var result CancelResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b Bet
		if err := tx.Scopes(database.LockForUpdate).Where("id = ?", betID).First(&b).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBetNotFound
			}
			return err
		}
		if b.UserID != userID {
			return ErrNotBetOwner
		}
		if b.Status != StatusPending {
			return ErrBetNotCancellable
		}

		var ev market.Event
		if err := tx.Where("id = ?", b.EventID).First(&ev).Error; err != nil {
			return err
		}
		if ev.Status != market.EventActive {
			return ErrBetNotCancellable
		}

		user, err := s.ledger.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Credit(ctx, tx, user, b.Amount, account.Entry{
			Type:        account.HistoryRefund,
			ReferenceID: b.ID,
			Description: "refund for cancelled bet",
		}); err != nil {
			return err
		}

		if err := tx.Model(&Bet{}).Where("id = ?", b.ID).Update("status", StatusCancelled).Error; err != nil {
			return err
		}
		if err := tx.Model(&PendingCommission{}).
			Where("bet_id = ? AND status = ?", b.ID, CommissionPending).
			Update("status", CommissionCancelled).Error; err != nil {
			return err
		}

		var outcome market.Outcome
		if err := tx.Scopes(database.LockForUpdate).Where("id = ?", b.OutcomeID).First(&outcome).Error; err != nil {
			return err
		}
		if err := tx.Model(&market.Outcome{}).Where("id = ?", outcome.ID).Updates(map[string]interface{}{
			"total_amount": outcome.TotalAmount.Sub(b.Amount),
			"total_bets":   gorm.Expr("total_bets - 1"),
		}).Error; err != nil {
			return err
		}

		result = CancelResult{BetID: b.ID, RefundAmount: b.Amount, NewBalance: user.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.BetsCancelled.Inc()
	s.log.Info("bet cancelled",
		zap.String("bet_id", betID),
		zap.String("user_id", userID),
		zap.String("refund", result.RefundAmount.String()))
	return &result, nil
}

// ListForUser returns a user's bets, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]Bet, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var bets []Bet
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&bets).Error
	return bets, err
}
