package market

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/database"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrOutcomeNotFound   = errors.New("outcome not found")
	ErrInvalidTransition = errors.New("invalid event state transition")
	ErrNotEnoughOutcomes = errors.New("an event needs at least two outcomes")
	ErrDeadlinePast      = errors.New("betting deadline must be in the future")
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type CreateEventRequest struct {
	CreatorID       string
	Title           string
	Description     string
	BettingDeadline time.Time
	Outcomes        []string
}

// Create registers a new event awaiting admin approval, together with its
// outcomes, in one transaction.
func (s *Service) Create(ctx context.Context, req CreateEventRequest) (*Event, error) {
	if len(req.Outcomes) < 2 {
		return nil, ErrNotEnoughOutcomes
	}
	if !req.BettingDeadline.After(time.Now()) {
		return nil, ErrDeadlinePast
	}

	ev := &Event{
		ID:              uuid.New().String(),
		CreatorID:       req.CreatorID,
		Title:           req.Title,
		Description:     req.Description,
		Status:          EventPendingApproval,
		BettingDeadline: req.BettingDeadline,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
		for _, title := range req.Outcomes {
			outcome := &Outcome{
				ID:      uuid.New().String(),
				EventID: ev.ID,
				Title:   title,
			}
			if err := tx.Create(outcome).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("event created", zap.String("event_id", ev.ID), zap.String("creator_id", ev.CreatorID))
	return ev, nil
}

// Approve moves a pending event to ACTIVE, opening it for bets.
func (s *Service) Approve(ctx context.Context, eventID string) (*Event, error) {
	return s.transition(ctx, eventID, EventPendingApproval, EventActive)
}

// Reject is terminal for a pending event.
func (s *Service) Reject(ctx context.Context, eventID string) (*Event, error) {
	return s.transition(ctx, eventID, EventPendingApproval, EventRejected)
}

func (s *Service) transition(ctx context.Context, eventID, from, to string) (*Event, error) {
	var ev Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(database.LockForUpdate).Where("id = ?", eventID).First(&ev).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		if ev.Status != from {
			return ErrInvalidTransition
		}
		ev.Status = to
		return tx.Model(&Event{}).Where("id = ?", eventID).Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("event status changed",
		zap.String("event_id", eventID),
		zap.String("from", from),
		zap.String("to", to))
	return &ev, nil
}

// Get loads an event with its outcomes.
func (s *Service) Get(ctx context.Context, eventID string) (*Event, []Outcome, error) {
	var ev Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, err
	}
	var outcomes []Outcome
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at ASC").Find(&outcomes).Error; err != nil {
		return nil, nil, err
	}
	return &ev, outcomes, nil
}
