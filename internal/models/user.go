package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
)

// Роли пользователей
const (
	UserRoleCustomer = "customer"
	UserRoleMechanic = "mechanic"
	UserRoleTowTruck = "tow_truck"
	UserRoleAdmin    = "admin"
)

// User профиль участника площадки в объёме, нужном процессам заявок.
type User struct {
	ID             uuid.UUID           `db:"id" json:"id"`
	Name           string              `db:"name" json:"name"`
	Role           string              `db:"role" json:"role"`
	LocationLng    *float64            `db:"location_lng" json:"-"`
	LocationLat    *float64            `db:"location_lat" json:"-"`
	Wallet         decimal.Decimal     `db:"wallet" json:"wallet"`
	PricePerUnit   decimal.NullDecimal `db:"price_per_unit" json:"price_per_unit"`
	Certifications pq.StringArray      `db:"certifications" json:"certifications"`
	CreatedAt      time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `db:"updated_at" json:"updated_at"`
}

// Location текущая точка пользователя.
func (u *User) Location() *valueobject.Point {
	return valueobject.NewPoint(u.LocationLng, u.LocationLat)
}

// IsProviderRole сообщает, может ли роль выступать исполнителем.
func IsProviderRole(role string) bool {
	return role == UserRoleMechanic || role == UserRoleTowTruck
}
