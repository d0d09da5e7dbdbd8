package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyUserID = "auth_user_id"
	contextKeyAdmin  = "auth_is_admin"
	bearerPrefix     = "Bearer "
)

// sessionClaims is the JWT payload issued by the marketplace's auth service.
type sessionClaims struct {
	jwt.RegisteredClaims
	Admin bool `json:"admin,omitempty"`
}

// authMiddleware validates the bearer token and stores the caller identity.
func authMiddleware(signingKey []byte, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, bearerPrefix)

		claims := &sessionClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
		if err != nil || !token.Valid || claims.Subject == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		ctx.Set(contextKeyUserID, claims.Subject)
		ctx.Set(contextKeyAdmin, claims.Admin)
		ctx.Next()
	}
}

// requireAdmin gates operator-only routes.
func requireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !ctx.GetBool(contextKeyAdmin) {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		ctx.Next()
	}
}

func callerUserID(ctx *gin.Context) string {
	return ctx.GetString(contextKeyUserID)
}
