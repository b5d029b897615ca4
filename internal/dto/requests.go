package dto

import (
	"errors"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

var statusValues = func() []interface{} {
	values := make([]interface{}, 0, len(valueobject.AllStatuses)+1)
	for _, s := range valueobject.AllStatuses {
		values = append(values, string(s))
	}
	return values
}()

func isUUID(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return errors.New("must be a valid UUID")
	}
	return nil
}

const (
	// MaxPage верхняя граница номера страницы, дальше OFFSET бессмыслен
	MaxPage = 10000
	// MaxServiceAmount предел цены одной услуги
	MaxServiceAmount = 1_000_000
)

var maxServiceAmount = decimal.NewFromInt(MaxServiceAmount)

func nonNegative(value interface{}) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

// moneyAmount сумма в пределах [0, MaxServiceAmount] и не точнее копеек.
func moneyAmount(value interface{}) error {
	if err := nonNegative(value); err != nil {
		return err
	}
	d := value.(decimal.Decimal)
	if d.GreaterThan(maxServiceAmount) {
		return fmt.Errorf("must be no greater than %d", MaxServiceAmount)
	}
	if !d.Equal(d.Truncate(2)) {
		return errors.New("must have at most 2 decimal places")
	}
	return nil
}

// ListJobProcessesQuery параметры списка процессов.
type ListJobProcessesQuery struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	Status     string `form:"status"`
	NextStatus string `form:"nextStatus"`
	SortField  string `form:"sortField"`
	SortOrder  string `form:"sortOrder"`
}

func (q *ListJobProcessesQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Page, validation.Min(0), validation.Max(MaxPage)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(100)),
		validation.Field(&q.Status, validation.In(append([]interface{}{valueobject.StatusHistory}, statusValues...)...)),
		validation.Field(&q.NextStatus, validation.In(statusValues...)),
		validation.Field(&q.SortOrder, validation.In("asc", "desc")),
	)
}

// ListTransactionsQuery параметры истории переводов.
type ListTransactionsQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (q *ListTransactionsQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Page, validation.Min(0), validation.Max(MaxPage)),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(100)),
	)
}

// CreateJobProcessRequest отклик исполнителя на заявку.
type CreateJobProcessRequest struct {
	JobID string `json:"job_id"`
}

func (r *CreateJobProcessRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.JobID, validation.Required, validation.By(isUUID)),
	)
}

// UpdateStatusRequest смена статуса процесса.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

func (r *UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Status, validation.Required, validation.In(statusValues...)),
	)
}

// ServiceItemRequest позиция услуги.
type ServiceItemRequest struct {
	ServiceID string          `json:"service_id"`
	Amount    decimal.Decimal `json:"amount"`
}

func (r ServiceItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ServiceID, validation.Required, validation.By(isUUID)),
		validation.Field(&r.Amount, validation.By(moneyAmount)),
	)
}

// AddServicesRequest тело запроса - массив услуг.
type AddServicesRequest []ServiceItemRequest

func (r AddServicesRequest) Validate() error {
	if len(r) == 0 {
		return validation.Errors{"services": errors.New("cannot be blank")}
	}
	errs := validation.Errors{}
	for i, item := range r {
		if err := item.Validate(); err != nil {
			errs[strconv.Itoa(i)] = err
		}
	}
	return errs.Filter()
}

// Services переводит запрос в позиции процесса. Вызывать после Validate.
func (r AddServicesRequest) Services() models.JobServices {
	services := make(models.JobServices, 0, len(r))
	for _, item := range r {
		services = append(services, models.JobService{
			ServiceID: uuid.MustParse(item.ServiceID),
			Amount:    item.Amount,
		})
	}
	return services
}

// FeedbackRequest отзыв клиента.
type FeedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment"`
}

func (r *FeedbackRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Comment, validation.Length(0, 1000)),
	)
}

// RefundRequest поля multipart формы запроса возврата.
type RefundRequest struct {
	Type    string `form:"type"`
	Details string `form:"details"`
}

func (r *RefundRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.In(models.TransactionTypeTransport, models.TransactionTypeService)),
		validation.Field(&r.Details, validation.Required, validation.Length(1, 2000)),
	)
}

// RefundDecisionRequest решение администратора по возврату.
type RefundDecisionRequest struct {
	Refunded *bool `json:"refunded"`
}

func (r *RefundDecisionRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Refunded, validation.NotNil),
	)
}

// DepositRequest пополнение кошелька.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *DepositRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.By(func(value interface{}) error {
			d, _ := value.(decimal.Decimal)
			if !d.IsPositive() {
				return errors.New("must be positive")
			}
			return nil
		})),
	)
}
