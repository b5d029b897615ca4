package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/metrics"
	"github.com/ignatzorin/roadside-backend/internal/repository"
)

// ExpiryRepository поиск и принудительный перевод устаревших процессов.
type ExpiryRepository interface {
	FindExpired(ctx context.Context, owner repository.OwnerScope, status string, before time.Time) ([]uuid.UUID, error)
	ForceStatus(ctx context.Context, id uuid.UUID, from, to string, before time.Time) (bool, error)
}

// ExpiryRule процесс в From дольше Delay переводится в To.
type ExpiryRule struct {
	From  valueobject.JobProcessStatus
	To    valueobject.JobProcessStatus
	Delay time.Duration
}

// ExpiryService автоматически отклоняет процессы, на которые сторона не ответила вовремя.
// Расчёты при таких переходах не выполняются.
type ExpiryService struct {
	repo    ExpiryRepository
	rules   []ExpiryRule
	metrics *metrics.Collector
	log     *logrus.Entry
	now     func() time.Time
}

// NewExpiryService создаёт сервис с двумя правилами: requested → rejected и serviced → service-rejected.
func NewExpiryService(repo ExpiryRepository, requestedDelay, servicedDelay time.Duration, m *metrics.Collector) *ExpiryService {
	return &ExpiryService{
		repo: repo,
		rules: []ExpiryRule{
			{From: valueobject.StatusRequested, To: valueobject.StatusRejected, Delay: requestedDelay},
			{From: valueobject.StatusServiced, To: valueobject.StatusServiceRejected, Delay: servicedDelay},
		},
		metrics: m,
		log:     logger.For("expiry"),
		now:     time.Now,
	}
}

// Sweep применяет все правила к процессам owner (пустой owner - ко всем).
// Ошибка одного процесса не останавливает остальные.
func (s *ExpiryService) Sweep(ctx context.Context, owner repository.OwnerScope) (int, error) {
	started := s.now()
	defer s.metrics.ObserveSweep("expiry", started)

	total := 0
	var errs []error
	for _, rule := range s.rules {
		n, err := s.AutoUpdateStatuses(ctx, owner, rule)
		total += n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return total, errors.Join(errs...)
}

// AutoUpdateStatuses переводит процессы в rule.From, не менявшиеся дольше rule.Delay, в rule.To.
func (s *ExpiryService) AutoUpdateStatuses(ctx context.Context, owner repository.OwnerScope, rule ExpiryRule) (int, error) {
	before := s.now().Add(-rule.Delay)
	ids, err := s.repo.FindExpired(ctx, owner, string(rule.From), before)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		fields := logrus.Fields{"job_process_id": id, "from": rule.From, "to": rule.To}
		ok, err := s.repo.ForceStatus(ctx, id, string(rule.From), string(rule.To), before)
		if err != nil {
			s.log.WithFields(fields).WithError(err).Error("не удалось отклонить процесс")
			continue
		}
		if !ok {
			// сторона успела ответить
			continue
		}
		updated++
		s.log.WithFields(fields).Info("процесс отклонён по таймауту")
	}

	s.metrics.RecordExpired(string(rule.From), string(rule.To), updated)
	return updated, nil
}
