package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/models"
)

// AccessClaims данные вызывающего из access токена. Токены выпускает модуль пользователей.
type AccessClaims struct {
	Role     string    `json:"role"`
	Name     string    `json:"name"`
	Location []float64 `json:"location,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager отвечает за проверку JWT.
type TokenManager struct {
	accessSecret []byte
	accessTTL    time.Duration
}

// NewTokenManager создаёт менеджер токенов.
func NewTokenManager(accessSecret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret: []byte(accessSecret),
		accessTTL:    accessTTL,
	}
}

// GenerateAccess выпускает access токен пользователя. Нужен для локальной разработки и тестов.
func (m *TokenManager) GenerateAccess(user *models.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Role: user.Role,
		Name: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
		},
	}
	if p := user.Location(); p != nil {
		claims.Location = []float64{p.Lng, p.Lat}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.accessSecret)
}

// ParseAccess проверяет access токен и возвращает вызывающего.
func (m *TokenManager) ParseAccess(token string) (Actor, error) {
	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.accessSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Actor{}, err
	}
	if !parsed.Valid {
		return Actor{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Actor{}, jwt.ErrTokenInvalidClaims
	}

	actor := Actor{ID: userID, Role: claims.Role, Name: claims.Name}
	if len(claims.Location) == 2 {
		actor.Location = &valueobject.Point{Lng: claims.Location[0], Lat: claims.Location[1]}
	}
	return actor, nil
}
