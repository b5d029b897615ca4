package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

// PartySummary сторона процесса в списке и карточке.
type PartySummary struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	Location *[2]float64 `json:"location,omitempty"`
}

// ProviderSummary исполнитель с репутацией, как его видит клиент.
type ProviderSummary struct {
	PartySummary
	Role           string   `json:"role"`
	AvgRating      *float64 `json:"avg_rating,omitempty"`
	FeedbackCount  *int     `json:"feedback_count,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
	// Distance расстояние от клиента до эвакуатора, км
	Distance *float64 `json:"distance,omitempty"`
}

// JobProcessItem элемент списка процессов. Клиент не видит customer, исполнитель не видит provider.
type JobProcessItem struct {
	ID             uuid.UUID          `json:"id"`
	Provider       *ProviderSummary   `json:"provider,omitempty"`
	Customer       *PartySummary      `json:"customer,omitempty"`
	Services       models.JobServices `json:"services"`
	ServicePrice   decimal.Decimal    `json:"service_price"`
	Status         string             `json:"status"`
	Rating         *int               `json:"rating,omitempty"`
	Comment        *string            `json:"comment,omitempty"`
	CarModel       string             `json:"car_model"`
	Platform       string             `json:"platform"`
	TransportPrice *decimal.Decimal   `json:"transport_price,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// JobProcessDetail карточка процесса с адресами и расстоянием маршрута.
type JobProcessDetail struct {
	ID            uuid.UUID          `json:"id"`
	Provider      PartySummary       `json:"provider"`
	Customer      PartySummary       `json:"customer"`
	Services      models.JobServices `json:"services"`
	ServicePrice  decimal.Decimal    `json:"service_price"`
	Status        string             `json:"status"`
	Rating        *int               `json:"rating,omitempty"`
	Comment       *string            `json:"comment,omitempty"`
	Location      *string            `json:"location,omitempty"`
	Destination   *string            `json:"destination,omitempty"`
	TotalDistance *float64           `json:"total_distance,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Pagination метаданные страницы.
type Pagination struct {
	TotalCount   int `json:"total_count"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
}

// NewPagination считает метаданные страницы.
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{TotalCount: total, TotalPages: pages, CurrentPage: page, ItemsPerPage: limit}
}

// UnreadCountResponse количество непрочитанных уведомлений.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// ShareLocationResponse участники идущих процессов пользователя.
type ShareLocationResponse struct {
	UserIDs []uuid.UUID `json:"user_ids"`
}

// ReleaseResponse результат ручного запуска выплат.
type ReleaseResponse struct {
	Released int `json:"released"`
}

// Envelope общий формат ответа. code совпадает с HTTP статусом.
type Envelope struct {
	Code       int         `json:"code"`
	Message    string      `json:"message,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// TransactionItem перевод с именами сторон.
type TransactionItem struct {
	models.Transaction
	CustomerName string `json:"customer_name"`
	ProviderName string `json:"provider_name"`
}
