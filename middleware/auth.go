package middleware

import (
	"splitshare-backend/database"
	"splitshare-backend/models"
	"splitshare-backend/utils"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the Bearer token and stores the caller's user ID in
// the gin context under "user_id". The user must still exist.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Token not found")
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if tokenString == "" {
			utils.Unauthorized(c, "Token not found")
			c.Abort()
			return
		}

		userID, err := utils.ParseToken(tokenString)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		var user models.User
		if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
			utils.Unauthorized(c, "User not found")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
