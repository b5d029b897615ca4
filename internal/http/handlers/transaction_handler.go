package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/http/handlers/common"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
	"github.com/ignatzorin/roadside-backend/internal/storage"
)

const maxRefundImages = 5

// TransactionQueries история переводов.
type TransactionQueries interface {
	List(ctx context.Context, userID uuid.UUID, page, limit int) ([]dto.TransactionItem, dto.Pagination, error)
	ForJobProcess(ctx context.Context, userID, jobProcessID uuid.UUID) ([]dto.TransactionItem, error)
}

// RefundRequester регистрирует запрос возврата.
type RefundRequester interface {
	RequestRefund(ctx context.Context, req service.RefundRequest) (*models.Transaction, error)
}

// ImageStore хранит фотографии к запросам возврата.
type ImageStore interface {
	SaveImage(ctx context.Context, ownerID uuid.UUID, r io.Reader) (string, error)
	Locate(ctx context.Context, ownerID uuid.UUID, name string) (string, error)
	Delete(ctx context.Context, publicPath string) error
}

var errRefundImageNotFound = apperror.New(apperror.ErrCodeNotFound, "файл не найден")

// TransactionHandler обслуживает маршруты переводов.
type TransactionHandler struct {
	queries TransactionQueries
	refunds RefundRequester
	images  ImageStore
}

// NewTransactionHandler создаёт новый хэндлер.
func NewTransactionHandler(queries TransactionQueries, refunds RefundRequester, images ImageStore) *TransactionHandler {
	return &TransactionHandler{queries: queries, refunds: refunds, images: images}
}

// List обрабатывает GET /transactions.
// С параметром job_process_id отдаёт переводы одного процесса.
func (h *TransactionHandler) List(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	if raw := c.Query("job_process_id"); raw != "" {
		jpID, err := uuid.Parse(raw)
		if err != nil {
			common.RespondError(c, common.ErrInvalidUUID)
			return
		}
		items, err := h.queries.ForJobProcess(c.Request.Context(), actor.ID, jpID)
		if err != nil {
			common.RespondError(c, err)
			return
		}
		common.RespondSuccess(c, http.StatusOK, "Переводы получены", items)
		return
	}

	var query dto.ListTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "неверные параметры запроса"))
		return
	}
	if err := common.Validate(&query); err != nil {
		common.RespondError(c, err)
		return
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.Limit == 0 {
		query.Limit = 10
	}

	items, pagination, err := h.queries.List(c.Request.Context(), actor.ID, query.Page, query.Limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	common.RespondPage(c, "Переводы получены", items, pagination)
}

// RequestRefund обрабатывает POST /transactions/refund/:jobProcessId.
// Форма multipart: type, details и до пяти файлов images.
func (h *TransactionHandler) RequestRefund(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	jpID, err := common.ParseUUIDParam(c, "jobProcessId")
	if err != nil {
		common.RespondError(c, err)
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBind(&req); err != nil {
		common.RespondError(c, apperror.Wrap(err, apperror.ErrCodeValidation, "неверная форма запроса"))
		return
	}
	if err := common.Validate(&req); err != nil {
		common.RespondError(c, err)
		return
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil && form != nil {
		files = form.File["images"]
	}
	if len(files) > maxRefundImages {
		common.RespondError(c, apperror.New(apperror.ErrCodeValidation, "можно приложить не более 5 изображений"))
		return
	}

	ctx := c.Request.Context()
	images, err := h.saveImages(ctx, actor.ID, files)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	t, err := h.refunds.RequestRefund(ctx, service.RefundRequest{
		CustomerID:   actor.ID,
		JobProcessID: jpID,
		Type:         req.Type,
		Details:      req.Details,
		Images:       images,
	})
	if err != nil {
		h.dropImages(ctx, images)
		common.RespondError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "Запрос на возврат отправлен", t)
}

// RefundImage обрабатывает GET <media>/:ownerId/:file.
// Фото видит только загрузивший их клиент и администратор; для остальных файла нет.
func (h *TransactionHandler) RefundImage(c *gin.Context) {
	actor, err := common.CurrentActor(c)
	if err != nil {
		common.RespondError(c, err)
		return
	}

	ownerID, err := common.ParseUUIDParam(c, "ownerId")
	if err != nil {
		common.RespondError(c, errRefundImageNotFound)
		return
	}
	if actor.ID != ownerID && actor.Role != models.UserRoleAdmin {
		common.RespondError(c, errRefundImageNotFound)
		return
	}

	path, err := h.images.Locate(c.Request.Context(), ownerID, c.Param("file"))
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			err = errRefundImageNotFound
		}
		common.RespondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.File(path)
}

func (h *TransactionHandler) saveImages(ctx context.Context, ownerID uuid.UUID, files []*multipart.FileHeader) ([]string, error) {
	saved := make([]string, 0, len(files))
	for _, fh := range files {
		path, err := h.saveImage(ctx, ownerID, fh)
		if err != nil {
			h.dropImages(ctx, saved)
			return nil, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

func (h *TransactionHandler) saveImage(ctx context.Context, ownerID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	file, err := fh.Open()
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeBadRequest, "не удалось прочитать файл")
	}
	defer file.Close()

	path, err := h.images.SaveImage(ctx, ownerID, file)
	switch {
	case errors.Is(err, storage.ErrNotImage):
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, "допустимы только изображения jpeg, png, gif или webp")
	case errors.Is(err, storage.ErrTooLarge):
		return "", apperror.Wrap(err, apperror.ErrCodeValidation, "файл слишком большой")
	case err != nil:
		return "", apperror.Internal(err)
	}
	return path, nil
}

// dropImages удаляет уже сохранённые фото; обрыв запроса клиентом уборку не прерывает.
func (h *TransactionHandler) dropImages(ctx context.Context, paths []string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		if err := h.images.Delete(ctx, p); err != nil {
			logger.For("transaction").WithError(err).WithField("path", p).Warn("не удалось удалить файл возврата")
		}
	}
}
