package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/roadside-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	lng, lat := 37.62, 55.75
	user := &models.User{ID: uuid.New(), Name: "Ivan", Role: models.UserRoleTowTruck, LocationLng: &lng, LocationLat: &lat}

	token, err := tm.GenerateAccess(user)
	require.NoError(t, err)

	actor, err := tm.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, actor.ID)
	assert.Equal(t, models.UserRoleTowTruck, actor.Role)
	assert.Equal(t, "Ivan", actor.Name)
	require.NotNil(t, actor.Location)
	assert.Equal(t, lng, actor.Location.Lng)
	assert.Equal(t, lat, actor.Location.Lat)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, err := NewTokenManager("other", time.Hour).GenerateAccess(&models.User{ID: uuid.New(), Role: models.UserRoleCustomer})
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).ParseAccess(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("secret", -time.Minute)
	token, err := tm.GenerateAccess(&models.User{ID: uuid.New(), Role: models.UserRoleCustomer})
	require.NoError(t, err)

	_, err = tm.ParseAccess(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenManager_RejectsOtherAlgorithm(t *testing.T) {
	claims := AccessClaims{Role: models.UserRoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).ParseAccess(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsBadSubject(t *testing.T) {
	claims := AccessClaims{Role: models.UserRoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "admin"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour).ParseAccess(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidClaims)
}
