package valueobject

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
)

// NewAmount проверяет, что сумма перевода не отрицательна.
func NewAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, apperror.ErrNegativeAmount
	}
	return amount, nil
}

// Commission считает комиссию платформы в процентах, округляя до центов.
func Commission(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return amount.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}

// Point координаты в порядке [долгота, широта].
type Point struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// NewPoint собирает точку из nullable колонок; nil, если координат нет.
func NewPoint(lng, lat *float64) *Point {
	if lng == nil || lat == nil {
		return nil
	}
	return &Point{Lng: *lng, Lat: *lat}
}

// Coordinates возвращает пару [lng, lat].
func (p Point) Coordinates() [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

const earthRadiusKm = 6378.137

// DistanceKm считает расстояние по формуле гаверсинуса; nil, если одной из точек нет.
func DistanceKm(a, b *Point) *float64 {
	if a == nil || b == nil {
		return nil
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	d := 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
	return &d
}
