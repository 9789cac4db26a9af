package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"betmarket/internal/account"
	"betmarket/internal/bet"
	"betmarket/internal/database"
	"betmarket/internal/market"
	"betmarket/internal/money"
	"betmarket/internal/settlement"
	"betmarket/internal/wallet"
)

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "data": data})
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
}

// respondError maps domain sentinels onto HTTP statuses. Unexpected errors
// are logged and surface as a generic 500 with no internals leaked.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("internal error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"success": false, "message": "internal error, please retry"})
		return
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, bet.ErrAmountOutOfRange),
		errors.Is(err, bet.ErrBettingClosed),
		errors.Is(err, bet.ErrBetNotCancellable),
		errors.Is(err, account.ErrInsufficientFunds),
		errors.Is(err, account.ErrAccountNotActive),
		errors.Is(err, market.ErrInvalidTransition),
		errors.Is(err, market.ErrNotEnoughOutcomes),
		errors.Is(err, market.ErrDeadlinePast),
		errors.Is(err, settlement.ErrAlreadySettled),
		errors.Is(err, settlement.ErrInvalidSettlement),
		errors.Is(err, wallet.ErrInvalidTransition),
		errors.Is(err, wallet.ErrAmountOutOfRange),
		errors.Is(err, wallet.ErrTxHashRequired):
		return http.StatusBadRequest
	case errors.Is(err, bet.ErrNotBetOwner):
		return http.StatusForbidden
	case errors.Is(err, market.ErrEventNotFound),
		errors.Is(err, market.ErrOutcomeNotFound),
		errors.Is(err, bet.ErrBetNotFound),
		errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, account.ErrHistoryNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case database.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
