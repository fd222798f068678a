package middleware

import (
	"net/http"
	"strings"

	"research-planner-api/internal/auth"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware guards the planner API: every request must carry a
// token issued by /api/login, either as a Bearer header or, for the
// websocket upgrade where browsers cannot set headers, as a ?token
// query parameter.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing planner API token",
			})
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Planner API token is invalid or expired",
			})
			c.Abort()
			return
		}

		// Handlers key websocket fan-out and audit records off these.
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
