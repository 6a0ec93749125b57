package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/altpay/payments-service/internal/apperrors"
	"github.com/altpay/payments-service/internal/core/domain"
	"github.com/altpay/payments-service/internal/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountSvc is a mock type for the AccountSvc interface
type MockAccountSvc struct {
	mock.Mock
}

func (m *MockAccountSvc) CreateAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AccountResponse), args.Error(1)
}

func (m *MockAccountSvc) GetAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AccountResponse), args.Error(1)
}

func (m *MockAccountSvc) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TransactionResponse), args.Error(1)
}

func (m *MockAccountSvc) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error) {
	args := m.Called(ctx, userID, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TransactionResponse), args.Error(1)
}

func (m *MockAccountSvc) ListTransactions(ctx context.Context, userID int64) ([]dto.TransactionResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.TransactionResponse), args.Error(1)
}

func setupAccountRouter(svc *MockAccountSvc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerAccountRoutes(r, svc)
	return r
}

func performRequest(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAccountHandler_Success(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	mockSvc.On("CreateAccount", mock.Anything, int64(1)).
		Return(&dto.AccountResponse{UserID: 1, Balance: decimal.Zero}, nil).Once()

	w := performRequest(r, http.MethodPost, "/account/1/create_account")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.AccountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.UserID)
	assert.True(t, resp.Balance.IsZero())

	mockSvc.AssertExpectations(t)
}

func TestCreateAccountHandler_Duplicate(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	mockSvc.On("CreateAccount", mock.Anything, int64(1)).
		Return(nil, fmt.Errorf("%w: account exists", apperrors.ErrDuplicate)).Once()

	w := performRequest(r, http.MethodPost, "/account/1/create_account")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestCreateAccountHandler_InvalidUserID(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	w := performRequest(r, http.MethodPost, "/account/abc/create_account")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestGetAccountHandler_Success(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	mockSvc.On("GetAccount", mock.Anything, int64(1)).
		Return(&dto.AccountResponse{UserID: 1, Balance: decimal.RequireFromString("70.00")}, nil).Once()

	w := performRequest(r, http.MethodGet, "/account/1")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.AccountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Balance.Equal(decimal.RequireFromString("70.00")))

	mockSvc.AssertExpectations(t)
}

func TestGetAccountHandler_NotFound(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	mockSvc.On("GetAccount", mock.Anything, int64(999)).
		Return(nil, apperrors.ErrNotFound).Once()

	w := performRequest(r, http.MethodGet, "/account/999")

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDepositHandler_Success(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("100.00")
	mockSvc.On("Deposit", mock.Anything, int64(1), amount, (*string)(nil)).
		Return(&dto.TransactionResponse{ID: 1, AccountID: 1, Amount: amount, Direction: domain.Deposit}, nil).Once()

	w := performRequest(r, http.MethodPost, "/account/1/deposit?amount=100.00")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.Deposit, resp.Direction)

	mockSvc.AssertExpectations(t)
}

func TestDepositHandler_PassesDescription(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("10.00")
	mockSvc.On("Deposit", mock.Anything, int64(1), amount, mock.MatchedBy(func(d *string) bool {
		return d != nil && *d == "salary"
	})).Return(&dto.TransactionResponse{ID: 1, AccountID: 1, Amount: amount, Direction: domain.Deposit}, nil).Once()

	w := performRequest(r, http.MethodPost, "/account/1/deposit?amount=10.00&description=salary")

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDepositHandler_InvalidAmount(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	w := performRequest(r, http.MethodPost, "/account/1/deposit?amount=notanumber")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositHandler_NegativeAmountRejectedByService(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("-5.00")
	mockSvc.On("Deposit", mock.Anything, int64(1), amount, (*string)(nil)).
		Return(nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrValidation)).Once()

	w := performRequest(r, http.MethodPost, "/account/1/deposit?amount=-5.00")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDepositHandler_AccountNotFound(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("10.00")
	mockSvc.On("Deposit", mock.Anything, int64(999), amount, (*string)(nil)).
		Return(nil, apperrors.ErrNotFound).Once()

	w := performRequest(r, http.MethodPost, "/account/999/deposit?amount=10.00")

	// Depositing into a missing account is a request error, not a 404.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestWithdrawHandler_Success(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("30.00")
	mockSvc.On("Withdraw", mock.Anything, int64(1), amount, (*string)(nil)).
		Return(&dto.TransactionResponse{ID: 2, AccountID: 1, Amount: amount, Direction: domain.Withdraw}, nil).Once()

	w := performRequest(r, http.MethodPost, "/account/1/withdraw?amount=30.00")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.Withdraw, resp.Direction)
	assert.True(t, resp.Amount.Equal(amount))

	mockSvc.AssertExpectations(t)
}

func TestWithdrawHandler_InsufficientFunds(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("40.00")
	mockSvc.On("Withdraw", mock.Anything, int64(1), amount, (*string)(nil)).
		Return(nil, fmt.Errorf("%w: balance too low", apperrors.ErrInsufficientFunds)).Once()

	w := performRequest(r, http.MethodPost, "/account/1/withdraw?amount=40.00")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestWithdrawHandler_AccountNotFound(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("10.00")
	mockSvc.On("Withdraw", mock.Anything, int64(999), amount, (*string)(nil)).
		Return(nil, apperrors.ErrNotFound).Once()

	w := performRequest(r, http.MethodPost, "/account/999/withdraw?amount=10.00")

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestWithdrawHandler_RetryExhausted(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	amount := decimal.RequireFromString("10.00")
	mockSvc.On("Withdraw", mock.Anything, int64(1), amount, (*string)(nil)).
		Return(nil, fmt.Errorf("%w: conflicts persisted", apperrors.ErrRetryExhausted)).Once()

	w := performRequest(r, http.MethodPost, "/account/1/withdraw?amount=10.00")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestListTransactionsHandler_Success(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	txns := []dto.TransactionResponse{
		{ID: 1, AccountID: 1, Amount: decimal.RequireFromString("100.00"), Direction: domain.Deposit},
		{ID: 2, AccountID: 1, Amount: decimal.RequireFromString("30.00"), Direction: domain.Withdraw},
	}
	mockSvc.On("ListTransactions", mock.Anything, int64(1)).Return(txns, nil).Once()

	w := performRequest(r, http.MethodGet, "/account/1/transactions")

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []dto.TransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, domain.Deposit, resp[0].Direction)
	assert.Equal(t, domain.Withdraw, resp[1].Direction)

	mockSvc.AssertExpectations(t)
}

func TestListTransactionsHandler_NotFound(t *testing.T) {
	mockSvc := new(MockAccountSvc)
	r := setupAccountRouter(mockSvc)

	mockSvc.On("ListTransactions", mock.Anything, int64(999)).
		Return(nil, apperrors.ErrNotFound).Once()

	w := performRequest(r, http.MethodGet, "/account/999/transactions")

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}
