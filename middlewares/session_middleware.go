package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/utils"
)

// SessionTokenMiddleware memvalidasi token sesi opak dari query string atau
// header, lalu menaruh session_id di context. Token bukan batas keamanan
// kriptografis; validasinya lookup biasa ke store.
func SessionTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("X-Session-Token")
		}
		if token == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		var session models.Session
		err := utils.GetDB().
			Where("token = ? AND status = ? AND expires_at > ?",
				token, models.SessionStatusActive, time.Now()).
			First(&session).Error
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set("session_id", session.ID)
		c.Next()
	}
}
