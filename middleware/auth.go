package middleware

import (
	"strings"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/helper"
	"itsm-knowledge-base/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var HTTPHelper = &helper.HTTPHelper{}

const principalKey = "principal"

type Claims struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the bearer token and stores the caller's principal
// on the request context.
func AuthMiddleware(jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			HTTPHelper.SendUnauthorizedError(c, "Authorization header required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			HTTPHelper.SendUnauthorizedError(c, "Bearer token required")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return jwtCfg.Secret, nil
		})
		if err != nil {
			HTTPHelper.SendUnauthorizedError(c, "Invalid token: "+err.Error())
			return
		}
		if !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
			HTTPHelper.SendUnauthorizedError(c, "Token is not valid")
			return
		}

		SetPrincipal(c, models.Principal{ID: claims.UserID, Name: claims.Username, Role: claims.Role})
		c.Next()
	}
}

func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the authenticated caller. ok is false on routes
// outside AuthMiddleware.
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// RequirePermission rejects callers whose role lacks perm. Ownership scoped
// checks stay in the services.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			HTTPHelper.SendUnauthorizedError(c, "User role not found")
			return
		}
		if !models.HasPermission(p, perm) {
			HTTPHelper.SendError(c, models.NewForbidden("Insufficient permissions").WithDetail("required", perm))
			return
		}
		c.Next()
	}
}
