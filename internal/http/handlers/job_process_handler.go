package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers/common"
	"github.com/ignatzorin/roadside-backend/internal/http/middleware"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

// JobProcessCommands изменяющие операции над процессами.
type JobProcessCommands interface {
	Create(ctx context.Context, actor service.Actor, jobID uuid.UUID) (*models.JobProcess, error)
	UpdateStatus(ctx context.Context, actor service.Actor, role valueobject.Role, id uuid.UUID, status string) (*models.JobProcess, error)
	AddServices(ctx context.Context, actor service.Actor, id uuid.UUID, services models.JobServices) (*models.JobProcess, error)
	LeaveFeedback(ctx context.Context, actor service.Actor, id uuid.UUID, rating int, comment *string) (*models.JobProcess, error)
	ShareLocationPeers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// JobProcessQueries чтение процессов.
type JobProcessQueries interface {
	List(ctx context.Context, actor service.Actor, role valueobject.Role, params service.ListParams) ([]dto.JobProcessItem, dto.Pagination, error)
	Get(ctx context.Context, actor service.Actor, role valueobject.Role, id uuid.UUID) (*dto.JobProcessDetail, error)
}

// JobProcessHandler обслуживает маршруты процессов выполнения заявок.
type JobProcessHandler struct {
	commands JobProcessCommands
	queries  JobProcessQueries
}

// NewJobProcessHandler создаёт новый хэндлер.
func NewJobProcessHandler(commands JobProcessCommands, queries JobProcessQueries) *JobProcessHandler {
	return &JobProcessHandler{commands: commands, queries: queries}
}

// List обрабатывает GET /job-processes/:role.
func (h *JobProcessHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var query dto.ListJobProcessesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "неверные параметры запроса"))
		return
	}
	if err := common.Validate(&query); err != nil {
		common.RespondError(c, err)
		return
	}

	items, page, err := h.queries.List(c.Request.Context(), actor, middleware.CurrentSide(c), service.ListParams{
		Page:       query.Page,
		Limit:      query.Limit,
		Status:     query.Status,
		NextStatus: query.NextStatus,
		SortField:  query.SortField,
		SortOrder:  query.SortOrder,
	})
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, "Процессы получены", items, page)
}

// Get обрабатывает GET /job-processes/:role/:id.
func (h *JobProcessHandler) Get(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	detail, err := h.queries.Get(c.Request.Context(), actor, middleware.CurrentSide(c), id)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Процесс получен", detail)
}

// UpdateStatus обрабатывает PUT /job-processes/:role/:id.
func (h *JobProcessHandler) UpdateStatus(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.UpdateStatusRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	jp, err := h.commands.UpdateStatus(c.Request.Context(), actor, middleware.CurrentSide(c), id, req.Status)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Статус обновлён", jp)
}

// DoRequest обрабатывает POST /job-processes/provider/do-request.
func (h *JobProcessHandler) DoRequest(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.CreateJobProcessRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	jp, err := h.commands.Create(c.Request.Context(), actor, uuid.MustParse(req.JobID))
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "Запрос отправлен", jp)
}

// AddServices обрабатывает POST /job-processes/provider/add-services/:id.
func (h *JobProcessHandler) AddServices(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.AddServicesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "ошибка валидации запроса: "+err.Error()))
		return
	}
	if err := common.Validate(req); err != nil {
		common.RespondError(c, err)
		return
	}

	jp, err := h.commands.AddServices(c.Request.Context(), actor, id, req.Services())
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Услуги добавлены", jp)
}

// Feedback обрабатывает POST /job-processes/customer/feedback/:id.
func (h *JobProcessHandler) Feedback(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.FeedbackRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondError(c, err)
		return
	}

	jp, err := h.commands.LeaveFeedback(c.Request.Context(), actor, id, req.Rating, req.Comment)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Отзыв сохранён", jp)
}

// ShareLocation обрабатывает GET /job-processes/share-location.
func (h *JobProcessHandler) ShareLocation(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	ids, err := h.commands.ShareLocationPeers(c.Request.Context(), actor.ID)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Участники получены", dto.ShareLocationResponse{UserIDs: ids})
}
