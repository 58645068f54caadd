package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const ctxUserClaims = "hub_user_claims"

// RequireUser returns a Gin middleware that enforces a valid session Bearer token.
//
// On success it injects the *Claims into the context under the
// "hub_user_claims" key.
func RequireUser(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxUserClaims, claims)
		c.Next()
	}
}

// OptionalUser returns a Gin middleware that tries to parse a session token.
// Unlike RequireUser, it never aborts — it silently skips injection when the
// header is absent or the token fails verification.
func OptionalUser(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			if claims, err := tokens.Verify(tokenStr); err == nil {
				c.Set(ctxUserClaims, claims)
			}
		}
		c.Next()
	}
}

// ClaimsFromCtx retrieves the claims injected by RequireUser.
// Returns nil if no session token is present in the context.
func ClaimsFromCtx(c *gin.Context) *Claims {
	v, _ := c.Get(ctxUserClaims)
	claims, _ := v.(*Claims)
	return claims
}

// UserIDFromCtx returns the authenticated user's UUID, or uuid.Nil when the
// context carries no valid session.
func UserIDFromCtx(c *gin.Context) uuid.UUID {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}
