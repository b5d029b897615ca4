package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
)

// JobService позиция услуги, добавленная исполнителем.
type JobService struct {
	ServiceID uuid.UUID       `json:"service_id"`
	Amount    decimal.Decimal `json:"amount"`
	Service   *string         `json:"service,omitempty"`
}

// JobServices хранится в колонке JSONB.
type JobServices []JobService

// Value реализует driver.Valuer.
func (s JobServices) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan реализует sql.Scanner.
func (s *JobServices) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = JobServices{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return errors.New("models: неподдерживаемый тип для services")
}

// Total суммирует стоимость услуг.
func (s JobServices) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s {
		total = total.Add(item.Amount)
	}
	return total
}

// JobProcess процесс выполнения заявки одним исполнителем.
type JobProcess struct {
	ID           uuid.UUID                    `db:"id" json:"id"`
	JobID        uuid.UUID                    `db:"job_id" json:"job_id"`
	ProviderID   uuid.UUID                    `db:"provider_id" json:"provider_id"`
	CustomerID   uuid.UUID                    `db:"customer_id" json:"customer_id"`
	Services     JobServices                  `db:"services" json:"services"`
	ServicePrice decimal.Decimal              `db:"service_price" json:"service_price"`
	Status       valueobject.JobProcessStatus `db:"status" json:"status"`
	Rating       *int                         `db:"rating" json:"rating,omitempty"`
	Comment      *string                      `db:"comment" json:"comment,omitempty"`
	CreatedAt    time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time                    `db:"updated_at" json:"updated_at"`
}

// OwnerID возвращает идентификатор стороны процесса для роли.
func (p *JobProcess) OwnerID(role valueobject.Role) uuid.UUID {
	if role == valueobject.RoleCustomer {
		return p.CustomerID
	}
	return p.ProviderID
}

// CounterpartID возвращает идентификатор второй стороны.
func (p *JobProcess) CounterpartID(role valueobject.Role) uuid.UUID {
	return p.OwnerID(role.Counterpart())
}

// JobProcessView процесс вместе с заявкой и сторонами, как его читают списки и карточка.
type JobProcessView struct {
	JobProcess
	JobStatus              string         `db:"job_status"`
	Platform               string         `db:"platform"`
	CarModel               *string        `db:"car_model"`
	LocationLng            *float64       `db:"location_lng"`
	LocationLat            *float64       `db:"location_lat"`
	DestinationLng         *float64       `db:"destination_lng"`
	DestinationLat         *float64       `db:"destination_lat"`
	ProviderName           string         `db:"provider_name"`
	ProviderRole           string         `db:"provider_role"`
	ProviderLng            *float64       `db:"provider_lng"`
	ProviderLat            *float64       `db:"provider_lat"`
	ProviderCertifications pq.StringArray `db:"provider_certifications"`
	CustomerName           string         `db:"customer_name"`
}

// Location точка подачи заявки.
func (v *JobProcessView) Location() *valueobject.Point {
	return valueobject.NewPoint(v.LocationLng, v.LocationLat)
}

// Destination точка назначения заявки.
func (v *JobProcessView) Destination() *valueobject.Point {
	return valueobject.NewPoint(v.DestinationLng, v.DestinationLat)
}

// ProviderLocation текущая точка исполнителя.
func (v *JobProcessView) ProviderLocation() *valueobject.Point {
	return valueobject.NewPoint(v.ProviderLng, v.ProviderLat)
}

// Reputation агрегат отзывов исполнителя.
type Reputation struct {
	ProviderID    uuid.UUID `db:"provider_id"`
	AvgRating     float64   `db:"avg_rating"`
	FeedbackCount int       `db:"feedback_count"`
}
