package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/roadside-backend/internal/http/middleware"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

type mockSettlement struct {
	mock.Mock
}

func (m *mockSettlement) DecideRefund(ctx context.Context, transactionID uuid.UUID, refunded bool) (*models.Transaction, error) {
	args := m.Called(ctx, transactionID, refunded)
	t, _ := args.Get(0).(*models.Transaction)
	return t, args.Error(1)
}

func (m *mockSettlement) ReleaseDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) List(ctx context.Context) ([]models.Balance, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Balance), args.Error(1)
}

func (m *mockBalances) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.User, error) {
	args := m.Called(ctx, userID, amount)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func newAdminRouter(role string, settlement *mockSettlement, balances *mockBalances) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withActor(service.Actor{ID: uuid.New(), Role: role}))
	h := NewAdminHandler(settlement, balances)
	admin := r.Group("/admin", middleware.RequireRoles(models.UserRoleAdmin))
	admin.POST("/transactions/:id/refund", h.DecideRefund)
	admin.POST("/transactions/release", h.Release)
	admin.POST("/wallets/:userId/deposit", h.Deposit)
	admin.GET("/balances", h.ListBalances)
	return r
}

func TestAdminHandler_RequiresAdmin(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleCustomer, settlement, balances)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/transactions/release", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	settlement.AssertNotCalled(t, "ReleaseDue", mock.Anything)
}

func TestAdminHandler_DecideRefund(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)
	id := uuid.New()

	settlement.On("DecideRefund", mock.Anything, id, false).
		Return(&models.Transaction{ID: id, Status: models.TransactionStatusReceived}, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+id.String()+"/refund", strings.NewReader(`{"refunded":false}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, models.TransactionStatusReceived, data["status"])
}

func TestAdminHandler_DecideRefund_MissingDecision(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)

	req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+uuid.NewString()+"/refund", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminHandler_DecideRefund_NotRequested(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)
	id := uuid.New()

	settlement.On("DecideRefund", mock.Anything, id, true).Return(nil, apperror.ErrTransactionNotFound)

	req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+id.String()+"/refund", strings.NewReader(`{"refunded":true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_Release(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)
	settlement.On("ReleaseDue", mock.Anything).Return(3, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/transactions/release", nil))

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 3, data["released"])
}

func TestAdminHandler_Deposit(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)
	userID := uuid.New()

	balances.On("Deposit", mock.Anything, userID, mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.RequireFromString("20.5"))
	})).Return(&models.User{ID: userID, Wallet: decimal.RequireFromString("25.5")}, nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/wallets/"+userID.String()+"/deposit", strings.NewReader(`{"amount":"20.5"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	balances.AssertExpectations(t)
}

func TestAdminHandler_Deposit_NonPositive(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)

	req := httptest.NewRequest(http.MethodPost, "/admin/wallets/"+uuid.NewString()+"/deposit", strings.NewReader(`{"amount":"-1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	balances.AssertNotCalled(t, "Deposit", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminHandler_ListBalances(t *testing.T) {
	settlement, balances := new(mockSettlement), new(mockBalances)
	r := newAdminRouter(models.UserRoleAdmin, settlement, balances)
	balances.On("List", mock.Anything).Return([]models.Balance{
		{Key: models.BalanceKeyApp, Value: decimal.NewFromInt(100)},
		{Key: models.BalanceKeyCharge, Value: decimal.NewFromInt(10)},
	}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/balances", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeEnvelope(t, w)["data"], 2)
}
