package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"room-ffe-api/internal/response"
	"room-ffe-api/internal/util"
)

// Auth returns a middleware that validates HMAC-signed JWT tokens issued by the identity service
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abortUnauthorized(c, "Invalid token claims")
			return
		}

		userID, err := userIDFromClaims(claims)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		// Store user ID for handlers and services
		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(util.ContextWithUserID(c.Request.Context(), userID))

		c.Next()
	}
}

type claimError string

func (e claimError) Error() string { return string(e) }

// userIDFromClaims supports "user_id", "sub" and "uid" claim names
func userIDFromClaims(claims jwt.MapClaims) (uuid.UUID, error) {
	var raw string
	for _, key := range []string{"user_id", "sub", "uid"} {
		if v, ok := claims[key].(string); ok && v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		return uuid.Nil, claimError("User ID not found in token")
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, claimError("Invalid user ID format")
	}
	return userID, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, message)
	c.Abort()
}
