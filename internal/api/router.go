package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betmarket/internal/account"
	"betmarket/internal/auth"
	"betmarket/internal/bet"
	"betmarket/internal/market"
	"betmarket/internal/settlement"
	"betmarket/internal/wallet"
)

type Server struct {
	bets    *bet.Service
	markets *market.Service
	wallet  *wallet.Service
	engine  *settlement.Engine
	ledger  *account.Ledger
	log     *zap.Logger
}

func NewServer(bets *bet.Service, markets *market.Service, w *wallet.Service, engine *settlement.Engine, ledger *account.Ledger, log *zap.Logger) *Server {
	return &Server{bets: bets, markets: markets, wallet: w, engine: engine, ledger: ledger, log: log}
}

// Router builds the public HTTP surface. Every route requires an
// authenticated caller; settlement and transaction review additionally
// require the admin role.
func (s *Server) Router(jwtSecret []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	authed := r.Group("/", auth.Middleware(jwtSecret))

	authed.POST("/bets", s.placeBet)
	authed.GET("/bets", s.listBets)
	authed.POST("/bets/:id/cancel", s.cancelBet)

	authed.POST("/events", s.createEvent)
	authed.GET("/events/:id", s.getEvent)

	authed.POST("/wallet/deposit", s.requestDeposit)
	authed.POST("/wallet/withdraw", s.requestWithdrawal)
	authed.GET("/wallet/balance", s.getBalance)
	authed.GET("/wallet/history", s.getHistory)

	admin := authed.Group("/", auth.RequireAdmin())
	admin.POST("/events/:id/resolve", s.resolveEvent)
	admin.PUT("/events/:id/approve", s.approveEvent)
	admin.PUT("/events/:id/reject", s.rejectEvent)
	admin.GET("/deposits", s.listPendingDeposits)
	admin.PUT("/deposits/:id/approve", s.approveDeposit)
	admin.PUT("/deposits/:id/reject", s.rejectDeposit)
	admin.GET("/withdrawals", s.listPendingWithdrawals)
	admin.PUT("/withdrawals/:id/approve", s.approveWithdrawal)
	admin.PUT("/withdrawals/:id/reject", s.rejectWithdrawal)

	return r
}

type placeBetBody struct {
	EventID      string `json:"eventId" binding:"required"`
	OutcomeID    string `json:"outcomeId" binding:"required"`
	Amount       string `json:"amount" binding:"required"`
	ReferralCode string `json:"referralCode"`
}

func (s *Server) placeBet(c *gin.Context) {
	var body placeBetBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := s.bets.Place(c.Request.Context(), bet.PlaceRequest{
		UserID:       auth.UserID(c),
		EventID:      body.EventID,
		OutcomeID:    body.OutcomeID,
		Amount:       body.Amount,
		ReferralCode: body.ReferralCode,
	})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "bet placed", result)
}

func (s *Server) listBets(c *gin.Context) {
	bets, err := s.bets.ListForUser(c.Request.Context(), auth.UserID(c), 0)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", bets)
}

func (s *Server) cancelBet(c *gin.Context) {
	result, err := s.bets.Cancel(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "bet cancelled", result)
}

type createEventBody struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	BettingDeadline time.Time `json:"bettingDeadline" binding:"required"`
	Outcomes        []string  `json:"outcomes" binding:"required"`
}

func (s *Server) createEvent(c *gin.Context) {
	var body createEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	ev, err := s.markets.Create(c.Request.Context(), market.CreateEventRequest{
		CreatorID:       auth.UserID(c),
		Title:           body.Title,
		Description:     body.Description,
		BettingDeadline: body.BettingDeadline,
		Outcomes:        body.Outcomes,
	})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "event created", ev)
}

func (s *Server) getEvent(c *gin.Context) {
	ev, outcomes, err := s.markets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", gin.H{"event": ev, "outcomes": outcomes})
}

type resolveEventBody struct {
	WinningOutcomeID string `json:"winningOutcomeId"`
}

func (s *Server) resolveEvent(c *gin.Context) {
	var body resolveEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	// An absent winning outcome voids the market: refund everyone.
	var winning *string
	if body.WinningOutcomeID != "" {
		winning = &body.WinningOutcomeID
	}
	result, err := s.engine.Resolve(c.Request.Context(), c.Param("id"), winning)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "event settled", result)
}

func (s *Server) approveEvent(c *gin.Context) {
	ev, err := s.markets.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "event approved", ev)
}

func (s *Server) rejectEvent(c *gin.Context) {
	ev, err := s.markets.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "event rejected", ev)
}

type depositBody struct {
	Amount string `json:"amount" binding:"required"`
	TxHash string `json:"txHash" binding:"required"`
}

func (s *Server) requestDeposit(c *gin.Context) {
	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := s.wallet.RequestDeposit(c.Request.Context(), auth.UserID(c), body.Amount, body.TxHash)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "deposit request created", result)
}

type withdrawBody struct {
	Amount string `json:"amount" binding:"required"`
}

func (s *Server) requestWithdrawal(c *gin.Context) {
	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := s.wallet.RequestWithdrawal(c.Request.Context(), auth.UserID(c), body.Amount)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "withdrawal request created", result)
}

func (s *Server) getBalance(c *gin.Context) {
	user, err := s.ledger.GetUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", gin.H{"balance": user.Balance, "status": user.Status})
}

func (s *Server) getHistory(c *gin.Context) {
	rows, err := s.ledger.History(c.Request.Context(), auth.UserID(c), 0)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", rows)
}

func (s *Server) listPendingDeposits(c *gin.Context) {
	rows, err := s.wallet.ListPending(c.Request.Context(), wallet.TypeDeposit, 0)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", rows)
}

func (s *Server) listPendingWithdrawals(c *gin.Context) {
	rows, err := s.wallet.ListPending(c.Request.Context(), wallet.TypeWithdrawal, 0)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "", rows)
}

func (s *Server) approveDeposit(c *gin.Context) {
	result, err := s.wallet.ApproveDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "deposit approved", result)
}

func (s *Server) rejectDeposit(c *gin.Context) {
	result, err := s.wallet.RejectDeposit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "deposit rejected", result)
}

func (s *Server) approveWithdrawal(c *gin.Context) {
	result, err := s.wallet.ApproveWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "withdrawal approved", result)
}

func (s *Server) rejectWithdrawal(c *gin.Context) {
	result, err := s.wallet.RejectWithdrawal(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	respondOK(c, "withdrawal rejected and refunded", result)
}
