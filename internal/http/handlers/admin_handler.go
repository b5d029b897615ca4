package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers/common"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

// Settlement операции администратора над переводами.
type Settlement interface {
	DecideRefund(ctx context.Context, transactionID uuid.UUID, refunded bool) (*models.Transaction, error)
	ReleaseDue(ctx context.Context) (int, error)
}

// Balances балансы площадки и пополнение кошельков.
type Balances interface {
	List(ctx context.Context) ([]models.Balance, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.User, error)
}

// AdminHandler обслуживает административные маршруты.
type AdminHandler struct {
	settlement Settlement
	balances   Balances
}

// NewAdminHandler создаёт новый хэндлер.
func NewAdminHandler(settlement Settlement, balances Balances) *AdminHandler {
	return &AdminHandler{settlement: settlement, balances: balances}
}

// DecideRefund обрабатывает POST /admin/transactions/:id/refund.
func (h *AdminHandler) DecideRefund(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.RefundDecisionRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	t, err := h.settlement.DecideRefund(c.Request.Context(), id, *req.Refunded)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Решение по возврату сохранено", t)
}

// Release обрабатывает POST /admin/transactions/release.
func (h *AdminHandler) Release(c *gin.Context) {
	released, err := h.settlement.ReleaseDue(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Выплаты проведены", dto.ReleaseResponse{Released: released})
}

// Deposit обрабатывает POST /admin/wallets/:userId/deposit.
func (h *AdminHandler) Deposit(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "userId")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.DepositRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	user, err := h.balances.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Кошелёк пополнен", user)
}

// ListBalances обрабатывает GET /admin/balances.
func (h *AdminHandler) ListBalances(c *gin.Context) {
	balances, err := h.balances.List(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Балансы получены", balances)
}
