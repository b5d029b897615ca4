package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

// Actor вызывающий пользователь из токена.
type Actor struct {
	ID       uuid.UUID
	Role     string
	Name     string
	Location *valueobject.Point
}

// JobProcessRepository операции с процессами вне транзакций Store.
type JobProcessRepository interface {
	SetFeedback(ctx context.Context, id, customerID uuid.UUID, statuses []string, rating int, comment *string) (*models.JobProcess, error)
	CounterpartIDs(ctx context.Context, userID uuid.UUID, runningStatuses []string) ([]uuid.UUID, error)
}

// JobProcessService жизненный цикл процесса: отклик, смена статусов, услуги и отзыв.
type JobProcessService struct {
	store        TxRunner
	repo         JobProcessRepository
	settlement   *SettlementService
	notifier     Notifier
	cache        Cache
	metrics      *metrics.Collector
	transportFee decimal.Decimal
	log          *logrus.Entry
}

// NewJobProcessService создаёт сервис процессов. cache может быть nil.
func NewJobProcessService(store TxRunner, repo JobProcessRepository, settlement *SettlementService, notifier Notifier, cache Cache, m *metrics.Collector, transportFee decimal.Decimal) *JobProcessService {
	return &JobProcessService{
		store:        store,
		repo:         repo,
		settlement:   settlement,
		notifier:     notifier,
		cache:        cache,
		metrics:      m,
		transportFee: transportFee,
		log:          logger.For("job_process"),
	}
}

// Create откликает исполнителя на активную заявку, где он среди кандидатов.
func (s *JobProcessService) Create(ctx context.Context, actor Actor, jobID uuid.UUID) (jp *models.JobProcess, err error) {
	ctx, span := tracer.Start(ctx, "job_process.create", trace.WithAttributes(
		attribute.String("job_id", jobID.String()),
		attribute.String("provider_id", actor.ID.String()),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.RecordTransition(string(valueobject.StatusRequested), err)
	}()

	if !models.IsProviderRole(actor.Role) {
		return nil, apperror.ErrForbidden
	}

	err = s.store.InTx(ctx, func(tx repository.TxStore) error {
		exists, err := tx.JobProcessExists(ctx, jobID, actor.ID)
		if err != nil {
			return apperror.Internal(err)
		}
		if exists {
			return apperror.ErrAlreadyRequested
		}

		job, err := tx.PullJobTarget(ctx, jobID, actor.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return apperror.ErrJobNotAvailable
			}
			return apperror.Internal(err)
		}

		price := decimal.Zero
		if actor.Role == models.UserRoleTowTruck {
			if price, err = s.towPrice(ctx, tx, actor.ID, job); err != nil {
				return err
			}
		}

		jp = &models.JobProcess{
			JobID:        job.ID,
			ProviderID:   actor.ID,
			CustomerID:   job.CustomerID,
			Services:     models.JobServices{},
			ServicePrice: price,
			Status:       valueobject.StatusRequested,
		}
		if err := tx.InsertJobProcess(ctx, jp); err != nil {
			if errors.Is(err, common.ErrAlreadyExists) {
				return apperror.ErrAlreadyRequested
			}
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"job_process_id": jp.ID, "job_id": jobID, "provider_id": actor.ID}).Info("исполнитель откликнулся на заявку")
	s.notifier.Notify(ctx, jp.CustomerID, "Отклик на заявку", "Исполнитель откликнулся на вашу заявку.")
	return jp, nil
}

// towPrice стоимость эвакуации: длина маршрута заявки, умноженная на тариф за километр.
func (s *JobProcessService) towPrice(ctx context.Context, tx repository.TxStore, providerID uuid.UUID, job *models.Job) (decimal.Decimal, error) {
	provider, err := tx.GetUser(ctx, providerID)
	if err != nil {
		return decimal.Zero, mapUserErr(err)
	}
	if !provider.PricePerUnit.Valid {
		return decimal.Zero, apperror.ErrNotTowTruck
	}

	distance := valueobject.DistanceKm(job.Location(), job.Destination())
	if distance == nil {
		return decimal.Zero, apperror.ErrJobRouteMissing
	}

	rate := provider.PricePerUnit.Decimal
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(*distance).Mul(rate).Round(2), nil
}

// UpdateStatus переводит процесс стороны role в status.
// Процесс блокируется только если он принадлежит вызывающему и находится в допустимом предыдущем статусе,
// иначе возвращается not found без уточнения причины.
func (s *JobProcessService) UpdateStatus(ctx context.Context, actor Actor, role valueobject.Role, id uuid.UUID, status string) (jp *models.JobProcess, err error) {
	ctx, span := tracer.Start(ctx, "job_process.update_status", trace.WithAttributes(
		attribute.String("job_process_id", id.String()),
		attribute.String("role", string(role)),
		attribute.String("status", status),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.RecordTransition(status, err)
	}()

	if !role.IsValid() {
		return nil, apperror.ErrInvalidRole
	}
	target, err := valueobject.NewJobProcessStatus(status)
	if err != nil {
		return nil, err
	}
	if !role.CanSet(target) {
		return nil, apperror.ErrStatusNotPermitted
	}

	preds := valueobject.AllowedPredecessors(target)
	if len(preds) == 0 {
		// статус выставляется только при создании
		return nil, apperror.ErrJobProcessNotFound
	}

	var (
		transfer *models.Transaction
		released []models.Transaction
	)
	err = s.store.InTx(ctx, func(tx repository.TxStore) error {
		var err error
		jp, err = tx.LockJobProcess(ctx, id, role.OwnerColumn(), actor.ID, valueobject.StatusStrings(preds))
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return apperror.ErrJobProcessNotFound
			}
			return apperror.Internal(err)
		}

		switch target {
		case valueobject.StatusAccepted:
			if s.transportFee.IsPositive() {
				transfer, err = s.settlement.TransferTx(ctx, tx, TransferRequest{
					CustomerID:   jp.CustomerID,
					ProviderID:   jp.ProviderID,
					JobProcessID: jp.ID,
					Amount:       s.transportFee,
					Type:         models.TransactionTypeTransport,
					Status:       models.TransactionStatusSuccess,
				})
			}
		case valueobject.StatusPaid:
			if jp.ServicePrice.IsPositive() {
				transfer, err = s.settlement.TransferTx(ctx, tx, TransferRequest{
					CustomerID:   jp.CustomerID,
					ProviderID:   jp.ProviderID,
					JobProcessID: jp.ID,
					Amount:       jp.ServicePrice,
					Type:         models.TransactionTypeService,
				})
			}
		case valueobject.StatusCompleted:
			released, err = s.settlement.FinalizeTx(ctx, tx, jp.ID)
		}
		if err != nil {
			return err
		}

		jp.Status = target
		if err := tx.UpdateJobProcess(ctx, jp); err != nil {
			return apperror.Internal(err)
		}

		if jobStatus, ok := valueobject.JobStatusFor(target); ok {
			if err := tx.UpdateJobStatus(ctx, jp.JobID, jobStatus); err != nil {
				return apperror.Internal(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"job_process_id": jp.ID, "status": target, "user_id": actor.ID}).Info("статус процесса изменён")

	if transfer != nil {
		s.settlement.NotifyTransfer(ctx, transfer, actor.Name)
	}
	s.settlement.NotifyReleased(ctx, released)
	s.notifier.Notify(ctx, jp.CounterpartID(role), "Обновление процесса",
		fmt.Sprintf("%s перевёл процесс в статус %s", actor.Name, target))
	return jp, nil
}

// AddServices фиксирует услуги исполнителя, их сумму и переводит процесс в serviced.
func (s *JobProcessService) AddServices(ctx context.Context, actor Actor, id uuid.UUID, services models.JobServices) (jp *models.JobProcess, err error) {
	ctx, span := tracer.Start(ctx, "job_process.add_services", trace.WithAttributes(
		attribute.String("job_process_id", id.String()),
	))
	defer func() {
		endSpan(span, err)
		s.metrics.RecordTransition(string(valueobject.StatusServiced), err)
	}()

	for _, item := range services {
		if item.Amount.IsNegative() {
			return nil, apperror.ErrNegativeAmount
		}
	}

	preds := valueobject.StatusStrings(valueobject.AllowedPredecessors(valueobject.StatusServiced))
	err = s.store.InTx(ctx, func(tx repository.TxStore) error {
		var err error
		jp, err = tx.LockJobProcess(ctx, id, valueobject.RoleProvider.OwnerColumn(), actor.ID, preds)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return apperror.ErrJobProcessNotFound
			}
			return apperror.Internal(err)
		}

		jp.Services = services
		jp.ServicePrice = services.Total()
		jp.Status = valueobject.StatusServiced
		if err := tx.UpdateJobProcess(ctx, jp); err != nil {
			return apperror.Internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, jp.CustomerID, "Обновление процесса", fmt.Sprintf("%s добавил услуги", actor.Name))
	return jp, nil
}

// LeaveFeedback сохраняет оценку клиента по завершённому процессу. Статус не меняется.
func (s *JobProcessService) LeaveFeedback(ctx context.Context, actor Actor, id uuid.UUID, rating int, comment *string) (*models.JobProcess, error) {
	jp, err := s.repo.SetFeedback(ctx, id, actor.ID, valueobject.StatusStrings(valueobject.DoneStatuses), rating, comment)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrJobProcessNotFound
		}
		return nil, apperror.Internal(err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, ReputationCacheKey(jp.ProviderID)); err != nil {
			s.log.WithField("provider_id", jp.ProviderID).WithError(err).Warn("не удалось сбросить репутацию")
		}
	}

	s.notifier.Notify(ctx, jp.ProviderID, "Обновление процесса", fmt.Sprintf("%s оставил отзыв", actor.Name))
	return jp, nil
}

// ShareLocationPeers возвращает участников идущих процессов пользователя без повторов.
func (s *JobProcessService) ShareLocationPeers(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := s.repo.CounterpartIDs(ctx, userID, valueobject.StatusStrings(valueobject.RunningStatuses))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return ids, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
