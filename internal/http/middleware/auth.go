package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/models"
	"github.com/ignatzorin/roadside-backend/internal/pkg/apperror"
	"github.com/ignatzorin/roadside-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextActorKey = "actor"
	ContextSideKey  = "side"
)

// TokenParser проверяет access токен.
type TokenParser interface {
	ParseAccess(token string) (service.Actor, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт вызывающего в контекст.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			abortWithAppError(c, apperror.ErrUnauthorized)
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			abortWithAppError(c, apperror.New(apperror.ErrCodeUnauthorized, "токен невалиден"))
			return
		}

		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// RequireRoles пропускает только пользователей с одной из ролей.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			abortWithAppError(c, apperror.ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		abortWithAppError(c, apperror.ErrForbidden)
	}
}

// RequireSide проверяет, что роль пользователя может выступать стороной процесса из параметра param
// (customer или provider), и кладёт сторону в контекст.
func RequireSide(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		side, err := valueobject.NewRole(c.Param(param))
		if err != nil {
			abortWithAppError(c, err)
			return
		}
		requireSide(c, side)
	}
}

// RequireFixedSide то же, что RequireSide, для маршрутов с заданной стороной.
func RequireFixedSide(side valueobject.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		requireSide(c, side)
	}
}

func requireSide(c *gin.Context, side valueobject.Role) {
	actor, ok := CurrentActor(c)
	if !ok {
		abortWithAppError(c, apperror.ErrUnauthorized)
		return
	}
	if !ActsAs(actor.Role, side) {
		abortWithAppError(c, apperror.ErrForbidden)
		return
	}
	c.Set(ContextSideKey, side)
	c.Next()
}

// ActsAs сообщает, может ли роль пользователя выступать стороной процесса.
func ActsAs(userRole string, side valueobject.Role) bool {
	switch side {
	case valueobject.RoleCustomer:
		return userRole == models.UserRoleCustomer
	case valueobject.RoleProvider:
		return models.IsProviderRole(userRole)
	}
	return false
}

// CurrentActor возвращает вызывающего из контекста.
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	raw, exists := c.Get(ContextActorKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := raw.(service.Actor)
	return actor, ok
}

// CurrentSide возвращает сторону процесса, проверенную RequireSide.
func CurrentSide(c *gin.Context) valueobject.Role {
	side, _ := c.Get(ContextSideKey)
	role, _ := side.(valueobject.Role)
	return role
}
