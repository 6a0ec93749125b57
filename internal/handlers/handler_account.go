package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/altpay/payments-service/internal/apperrors"
	portssvc "github.com/altpay/payments-service/internal/core/ports/services"
	"github.com/altpay/payments-service/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// accountHandler handles HTTP requests related to ledger accounts.
type accountHandler struct {
	accountService portssvc.AccountSvc
}

// newAccountHandler creates a new accountHandler.
func newAccountHandler(as portssvc.AccountSvc) *accountHandler {
	return &accountHandler{
		accountService: as,
	}
}

// registerAccountRoutes registers routes related to accounts.
func registerAccountRoutes(r *gin.Engine, accountService portssvc.AccountSvc) {
	h := newAccountHandler(accountService)

	account := r.Group("/account")
	{
		account.POST("/:userID/create_account", h.createAccount)
		account.GET("/:userID", h.getAccount)
		account.POST("/:userID/deposit", h.deposit)
		account.POST("/:userID/withdraw", h.withdraw)
		account.GET("/:userID/transactions", h.listTransactions)
	}
}

// userIDParam parses the userID path parameter. A non-integer ID is a request
// format error, reported directly by this helper.
func userIDParam(c *gin.Context) (int64, bool) {
	userID, err := strconv.ParseInt(c.Param("userID"), 10, 64)
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Invalid user ID in path",
			slog.String("user_id", c.Param("userID")))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return userID, true
}

// amountParam parses the amount query parameter as an exact decimal.
func amountParam(c *gin.Context) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Invalid amount in query",
			slog.String("amount", c.Query("amount")))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
		return decimal.Zero, false
	}
	return amount, true
}

// descriptionParam returns the optional description query parameter.
func descriptionParam(c *gin.Context) *string {
	if desc := c.Query("description"); desc != "" {
		return &desc
	}
	return nil
}

// createAccount godoc
// @Summary Create a new account
// @Description Creates a zero-balance account for the given user ID
// @Tags account
// @Produce json
// @Param userID path int true "User ID"
// @Success 200 {object} dto.AccountResponse
// @Failure 400 {object} map[string]string "Account already exists"
// @Router /account/{userID}/create_account [post]
func (h *accountHandler) createAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	account, err := h.accountService.CreateAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			logger.Warn("Account already exists", slog.Int64("user_id", userID))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Account already exists"})
		} else {
			logger.Error("Failed to create account in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		}
		return
	}

	c.JSON(http.StatusOK, account)
}

// getAccount godoc
// @Summary Get an account with its balance
// @Description Retrieves the account and its balance derived from the full transaction history
// @Tags account
// @Produce json
// @Param userID path int true "User ID"
// @Success 200 {object} dto.AccountResponse
// @Failure 404 {object} map[string]string "Account not found"
// @Router /account/{userID} [get]
func (h *accountHandler) getAccount(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Account not found", slog.Int64("user_id", userID))
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to get account from service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve account"})
		}
		return
	}

	c.JSON(http.StatusOK, account)
}

// deposit godoc
// @Summary Deposit into an account
// @Description Appends a positive transaction to the account's ledger
// @Tags account
// @Produce json
// @Param userID path int true "User ID"
// @Param amount query string true "Exact decimal amount, e.g. 100.00"
// @Param description query string false "Optional free-text description"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid amount or account not found"
// @Router /account/{userID}/deposit [post]
func (h *accountHandler) deposit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	amount, ok := amountParam(c)
	if !ok {
		return
	}

	txn, err := h.accountService.Deposit(c.Request.Context(), userID, amount, descriptionParam(c))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Invalid deposit amount", slog.Int64("user_id", userID), slog.String("amount", amount.String()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Deposit amount must be positive"})
		case errors.Is(err, apperrors.ErrNotFound):
			logger.Warn("Account not found for deposit", slog.Int64("user_id", userID))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Account not found"})
		default:
			logger.Error("Failed to deposit in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deposit amount into account"})
		}
		return
	}

	c.JSON(http.StatusOK, txn)
}

// withdraw godoc
// @Summary Withdraw from an account
// @Description Appends a negative transaction under the per-account concurrency guard
// @Tags account
// @Produce json
// @Param userID path int true "User ID"
// @Param amount query string true "Exact decimal amount, e.g. 30.00"
// @Param description query string false "Optional free-text description"
// @Success 200 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid amount or insufficient funds"
// @Failure 404 {object} map[string]string "Account not found"
// @Router /account/{userID}/withdraw [post]
func (h *accountHandler) withdraw(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := userIDParam(c)
	if !ok {
		return
	}
	amount, ok := amountParam(c)
	if !ok {
		return
	}

	txn, err := h.accountService.Withdraw(c.Request.Context(), userID, amount, descriptionParam(c))
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrValidation):
			logger.Warn("Invalid withdrawal amount", slog.Int64("user_id", userID), slog.String("amount", amount.String()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Withdrawal amount must be positive"})
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			logger.Warn("Insufficient funds for withdrawal", slog.Int64("user_id", userID), slog.String("amount", amount.String()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds for withdrawal"})
		case errors.Is(err, apperrors.ErrNotFound):
			logger.Warn("Account not found for withdrawal", slog.Int64("user_id", userID))
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		case errors.Is(err, apperrors.ErrRetryExhausted):
			logger.Error("Withdrawal retry budget exhausted", slog.Int64("user_id", userID))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Withdrawal conflicted repeatedly, try again"})
		default:
			logger.Error("Failed to withdraw in service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to withdraw amount from account"})
		}
		return
	}

	c.JSON(http.StatusOK, txn)
}

// listTransactions godoc
// @Summary List an account's transactions
// @Description Returns all transactions in insertion order with direction derived from the amount sign
// @Tags account
// @Produce json
// @Param userID path int true "User ID"
// @Success 200 {array} dto.TransactionResponse
// @Failure 404 {object} map[string]string "Account not found"
// @Router /account/{userID}/transactions [get]
func (h *accountHandler) listTransactions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := userIDParam(c)
	if !ok {
		return
	}

	transactions, err := h.accountService.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.Warn("Account not found for transaction listing", slog.Int64("user_id", userID))
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		} else {
			logger.Error("Failed to list transactions from service", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transactions"})
		}
		return
	}

	c.JSON(http.StatusOK, transactions)
}
