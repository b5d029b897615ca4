package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
)

// Статусы заявки
const (
	JobStatusActive    = "active"
	JobStatusProcess   = "process"
	JobStatusCompleted = "completed"
)

// PlatformOnSite заявка с выездом исполнителя.
const PlatformOnSite = "on site"

// Job заявка клиента на помощь.
type Job struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	CustomerID     uuid.UUID      `db:"customer_id" json:"customer_id"`
	Targets        pq.StringArray `db:"targets" json:"targets"`
	Status         string         `db:"status" json:"status"`
	Platform       string         `db:"platform" json:"platform"`
	CarModel       *string        `db:"car_model" json:"car_model,omitempty"`
	LocationLng    *float64       `db:"location_lng" json:"-"`
	LocationLat    *float64       `db:"location_lat" json:"-"`
	DestinationLng *float64       `db:"destination_lng" json:"-"`
	DestinationLat *float64       `db:"destination_lat" json:"-"`
	IsDeleted      bool           `db:"is_deleted" json:"is_deleted"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Location точка подачи.
func (j *Job) Location() *valueobject.Point {
	return valueobject.NewPoint(j.LocationLng, j.LocationLat)
}

// Destination точка назначения (для эвакуатора).
func (j *Job) Destination() *valueobject.Point {
	return valueobject.NewPoint(j.DestinationLng, j.DestinationLat)
}
