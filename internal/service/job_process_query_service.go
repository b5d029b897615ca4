package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/dto"
	"github.com/ignatzorin/roadside-backend/internal/logger"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/repository"
	"github.com/ignatzorin/roadside-backend/internal/repository/common"
)

const (
	defaultPage        = 1
	defaultLimit       = 10
	reputationCacheTTL = 10 * time.Minute
)

// Параметры сортировки из запроса в колонки репозитория.
var sortFields = map[string]string{
	"updatedAt":    "updated_at",
	"createdAt":    "created_at",
	"status":       "status",
	"servicePrice": "service_price",
}

// JobProcessReader чтение процессов для списков и карточки.
type JobProcessReader interface {
	GetView(ctx context.Context, id uuid.UUID, owner repository.OwnerScope) (*models.JobProcessView, error)
	List(ctx context.Context, filter repository.JobProcessFilter) ([]models.JobProcessView, int, error)
	ServiceNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	ProviderReputation(ctx context.Context, providerIDs []uuid.UUID, doneStatuses []string) (map[uuid.UUID]models.Reputation, error)
}

// Sweeper прогоняет автоотклонение перед чтением.
type Sweeper interface {
	Sweep(ctx context.Context, owner repository.OwnerScope) (int, error)
}

// ReverseGeocoder превращает координаты в адрес; nil, если адрес не найден.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p *valueobject.Point) *string
}

// ListParams параметры списка процессов.
type ListParams struct {
	Page       int
	Limit      int
	Status     string
	NextStatus string
	SortField  string
	SortOrder  string
}

// JobProcessQueryService строит представления процессов для клиента и исполнителя.
type JobProcessQueryService struct {
	reader   JobProcessReader
	sweeper  Sweeper
	settings SettingReader
	geocoder ReverseGeocoder
	cache    Cache
	log      *logrus.Entry
}

// NewJobProcessQueryService создаёт сервис чтения. sweeper и cache могут быть nil.
func NewJobProcessQueryService(reader JobProcessReader, sweeper Sweeper, settings SettingReader, geocoder ReverseGeocoder, cache Cache) *JobProcessQueryService {
	return &JobProcessQueryService{
		reader:   reader,
		sweeper:  sweeper,
		settings: settings,
		geocoder: geocoder,
		cache:    cache,
		log:      logger.For("job_process_query"),
	}
}

// List возвращает страницу процессов стороны role.
func (s *JobProcessQueryService) List(ctx context.Context, actor Actor, role valueobject.Role, params ListParams) ([]dto.JobProcessItem, dto.Pagination, error) {
	if !role.IsValid() {
		return nil, dto.Pagination{}, apperror.ErrInvalidRole
	}
	owner := repository.OwnerScope{Column: role.OwnerColumn(), ID: actor.ID}

	if s.sweeper != nil {
		if _, err := s.sweeper.Sweep(ctx, owner); err != nil {
			s.log.WithField("user_id", actor.ID).WithError(err).Warn("автоотклонение перед чтением завершилось с ошибкой")
		}
	}

	statuses, err := statusFilter(role, params.Status, params.NextStatus)
	if err != nil {
		return nil, dto.Pagination{}, err
	}

	page, limit := params.Page, params.Limit
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	sortBy := params.SortField
	if column, ok := sortFields[sortBy]; ok {
		sortBy = column
	}

	views, total, err := s.reader.List(ctx, repository.JobProcessFilter{
		Owner:     owner,
		Statuses:  statuses,
		SortBy:    sortBy,
		SortOrder: params.SortOrder,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return nil, dto.Pagination{}, apperror.Internal(err)
	}

	items := make([]dto.JobProcessItem, 0, len(views))
	if role == valueobject.RoleCustomer {
		items, err = s.customerItems(ctx, actor, views)
		if err != nil {
			return nil, dto.Pagination{}, err
		}
	} else {
		for i := range views {
			item := baseItem(&views[i])
			item.Customer = &dto.PartySummary{ID: views[i].CustomerID, Name: views[i].CustomerName}
			items = append(items, item)
		}
	}

	return items, dto.NewPagination(total, page, limit), nil
}

func (s *JobProcessQueryService) customerItems(ctx context.Context, actor Actor, views []models.JobProcessView) ([]dto.JobProcessItem, error) {
	providerIDs := make([]uuid.UUID, 0, len(views))
	seen := make(map[uuid.UUID]bool, len(views))
	for _, v := range views {
		if !seen[v.ProviderID] {
			seen[v.ProviderID] = true
			providerIDs = append(providerIDs, v.ProviderID)
		}
	}

	reputations, err := s.reputations(ctx, providerIDs)
	if err != nil {
		return nil, err
	}

	var transportPrice *decimal.Decimal
	items := make([]dto.JobProcessItem, 0, len(views))
	for i := range views {
		v := &views[i]
		item := baseItem(v)
		item.Provider = s.providerSummary(actor, v, reputations[v.ProviderID])

		if v.Status == valueobject.StatusRequested {
			price := decimal.Zero
			if v.Platform == models.PlatformOnSite {
				if transportPrice == nil {
					p := s.settings.Decimal(ctx, models.SettingTransportPrice, decimal.Zero)
					transportPrice = &p
				}
				price = *transportPrice
			}
			item.TransportPrice = &price
		}
		items = append(items, item)
	}
	return items, nil
}

// providerSummary дополняет исполнителя репутацией и, в зависимости от специализации,
// сертификатами механика или расстоянием до эвакуатора.
func (s *JobProcessQueryService) providerSummary(actor Actor, v *models.JobProcessView, rep models.Reputation) *dto.ProviderSummary {
	avg, count := rep.AvgRating, rep.FeedbackCount
	summary := &dto.ProviderSummary{
		PartySummary:  party(v.ProviderID, v.ProviderName, v.ProviderLocation()),
		Role:          v.ProviderRole,
		AvgRating:     &avg,
		FeedbackCount: &count,
	}

	switch v.ProviderRole {
	case models.UserRoleMechanic:
		summary.Certifications = []string(v.ProviderCertifications)
		if summary.Certifications == nil {
			summary.Certifications = []string{}
		}
	case models.UserRoleTowTruck:
		summary.Distance = valueobject.DistanceKm(actor.Location, v.ProviderLocation())
	}
	return summary
}

// reputations читает репутацию исполнителей: через кэш по одному или пачкой без кэша.
func (s *JobProcessQueryService) reputations(ctx context.Context, providerIDs []uuid.UUID) (map[uuid.UUID]models.Reputation, error) {
	done := valueobject.StatusStrings(valueobject.DoneStatuses)
	if s.cache == nil {
		result, err := s.reader.ProviderReputation(ctx, providerIDs, done)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		return result, nil
	}

	result := make(map[uuid.UUID]models.Reputation, len(providerIDs))
	for _, id := range providerIDs {
		id := id
		var rep models.Reputation
		err := s.cache.GetOrSet(ctx, ReputationCacheKey(id), reputationCacheTTL, &rep, func() (interface{}, error) {
			found, err := s.reader.ProviderReputation(ctx, []uuid.UUID{id}, done)
			if err != nil {
				return nil, err
			}
			// без завершённых процессов репутация нулевая
			return models.Reputation{ProviderID: id, AvgRating: found[id].AvgRating, FeedbackCount: found[id].FeedbackCount}, nil
		})
		if err != nil {
			return nil, apperror.Internal(err)
		}
		result[id] = rep
	}
	return result, nil
}

// Get возвращает карточку процесса стороны role с названиями услуг, адресами и длиной маршрута.
func (s *JobProcessQueryService) Get(ctx context.Context, actor Actor, role valueobject.Role, id uuid.UUID) (*dto.JobProcessDetail, error) {
	if !role.IsValid() {
		return nil, apperror.ErrInvalidRole
	}

	view, err := s.reader.GetView(ctx, id, repository.OwnerScope{Column: role.OwnerColumn(), ID: actor.ID})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperror.ErrJobProcessNotFound
		}
		return nil, apperror.Internal(err)
	}

	serviceIDs := make([]uuid.UUID, 0, len(view.Services))
	for _, item := range view.Services {
		serviceIDs = append(serviceIDs, item.ServiceID)
	}
	names, err := s.reader.ServiceNames(ctx, serviceIDs)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	services := make(models.JobServices, 0, len(view.Services))
	for _, item := range view.Services {
		if name, ok := names[item.ServiceID]; ok {
			name := name
			item.Service = &name
		}
		services = append(services, item)
	}

	detail := &dto.JobProcessDetail{
		ID:           view.ID,
		Provider:     party(view.ProviderID, view.ProviderName, view.ProviderLocation()),
		Customer:     dto.PartySummary{ID: view.CustomerID, Name: view.CustomerName},
		Services:     services,
		ServicePrice: view.ServicePrice,
		Status:       string(view.Status),
		Rating:       view.Rating,
		Comment:      view.Comment,
		CreatedAt:    view.CreatedAt,
		UpdatedAt:    view.UpdatedAt,
	}

	if location := view.Location(); location != nil {
		detail.Location = s.geocoder.ReverseGeocode(ctx, location)
	}
	if destination := view.Destination(); destination != nil {
		detail.Destination = s.geocoder.ReverseGeocode(ctx, destination)
		if d := valueobject.DistanceKm(view.Location(), destination); d != nil {
			rounded := math.Round(*d*100) / 100
			detail.TotalDistance = &rounded
		}
	}
	return detail, nil
}

// statusFilter раскрывает history в статусы истории роли, а status с nextStatus - в пару.
func statusFilter(role valueobject.Role, status, next string) ([]string, error) {
	switch status {
	case "":
		return nil, nil
	case valueobject.StatusHistory:
		return valueobject.StatusStrings(valueobject.HistoryStatuses(role)), nil
	}

	statuses := []string{}
	for _, raw := range []string{status, next} {
		if raw == "" {
			continue
		}
		s, err := valueobject.NewJobProcessStatus(raw)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, string(s))
	}
	return statuses, nil
}

func baseItem(v *models.JobProcessView) dto.JobProcessItem {
	carModel := "N/A"
	if v.CarModel != nil && *v.CarModel != "" {
		carModel = *v.CarModel
	}
	services := v.Services
	if services == nil {
		services = models.JobServices{}
	}
	return dto.JobProcessItem{
		ID:           v.ID,
		Services:     services,
		ServicePrice: v.ServicePrice,
		Status:       string(v.Status),
		Rating:       v.Rating,
		Comment:      v.Comment,
		CarModel:     carModel,
		Platform:     v.Platform,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}

func party(id uuid.UUID, name string, location *valueobject.Point) dto.PartySummary {
	p := dto.PartySummary{ID: id, Name: name}
	if location != nil {
		coords := location.Coordinates()
		p.Location = &coords
	}
	return p
}
