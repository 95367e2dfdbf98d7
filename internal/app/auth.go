package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// tutorIDKey holds the JWT subject. Static tokens leave it unset and may
// act for any tutor.
const tutorIDKey = "tutor_id"

// Auth middleware supporting static tokens or JWT
func AuthMiddleware(jwtSecret string, staticTokens []string) gin.HandlerFunc {
	jwtSecret = strings.TrimSpace(jwtSecret)

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		tokenStr := parts[1]

		// JWT path
		if jwtSecret != "" {
			var claims jwt.RegisteredClaims
			_, err := jwt.ParseWithClaims(tokenStr, &claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenMalformed
				}
				return []byte(jwtSecret), nil
			}, jwt.WithLeeway(5*time.Second))
			if err == nil {
				if claims.Subject != "" {
					c.Set(tutorIDKey, claims.Subject)
				}
				c.Next()
				return
			}
		}

		// static tokens
		for _, t := range staticTokens {
			if tokenStr == t {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

// tutorParam returns the :id path tutor, rejecting callers whose token
// belongs to another tutor.
func tutorParam(c *gin.Context) (string, bool) {
	tutorID := c.Param("id")
	if sub := c.GetString(tutorIDKey); sub != "" && sub != tutorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not belong to this tutor"})
		return "", false
	}
	return tutorID, true
}
