package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"teamtasks/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// UserLookup resolves the user behind a token. It is satisfied by
// repositories.UserRepository.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type IdentityConfig struct {
	Secret     string
	CookieName string
	Users      UserLookup
}

// Identity verifies the session token, taken from the auth cookie or a Bearer
// Authorization header, and stores the caller as a models.Actor on the
// context. Admin status is always read from the user record, never from the
// token.
func Identity(config IdentityConfig) gin.HandlerFunc {
	if config.CookieName == "" {
		config.CookieName = "token"
	}

	return func(c *gin.Context) {
		userID, err := userIDFromRequest(c, config)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "Not authorized. Try login again.",
			})
			return
		}

		user, err := config.Users.FindByID(c.Request.Context(), userID)
		if err != nil || !user.IsActive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "Not authorized. Try login again.",
			})
			return
		}

		SetActor(c, models.Actor{UserID: user.ID, IsAdmin: user.IsAdmin})
		c.Next()
	}
}

// RequireAdmin must run after Identity.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.IsAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":  false,
				"message": "Not authorized as admin. Try login as admin.",
			})
			return
		}
		c.Next()
	}
}

func SetActor(c *gin.Context, actor models.Actor) {
	c.Set(actorKey, actor)
}

func ActorFrom(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

func userIDFromRequest(c *gin.Context, config IdentityConfig) (uuid.UUID, error) {
	tokenStr, err := c.Cookie(config.CookieName)
	if err != nil || tokenStr == "" {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return uuid.Nil, errMissingToken
		}
		tokenStr = strings.TrimPrefix(authHeader, "Bearer ")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(config.Secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errInvalidToken
	}

	raw, _ := claims["userId"].(string)
	if raw == "" {
		raw, _ = claims["id"].(string)
	}
	id, err := uuid.FromString(raw)
	if err != nil {
		return uuid.Nil, errInvalidToken
	}
	return id, nil
}
