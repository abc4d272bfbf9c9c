package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/realtime"
	"github.com/tablemate/tablemate/services"
	"github.com/tablemate/tablemate/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type FeedController struct {
	Sessions *services.SessionService
}

func NewFeedController(db *gorm.DB) *FeedController {
	return &FeedController{Sessions: services.NewSessionService(db)}
}

// SessionFeedHandler -> endpoint WebSocket change feed satu sesi.
// Klien subscribe dulu, baru melakukan full reload (lihat projection).
func (fc *FeedController) SessionFeedHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	session, err := fc.Sessions.GetSessionByToken(token)
	if err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	participantID, _ := strconv.Atoi(c.Query("participant_id"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	realtime.RegisterClient(ws, session.ID, uint(participantID))
	utils.InfoLogger.Printf("Feed subscriber joined session %d (participant %d)",
		session.ID, participantID)

	// Read loop hanya untuk mendeteksi putusnya koneksi; feed satu arah
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	realtime.UnregisterClient(ws)
	utils.InfoLogger.Printf("Feed subscriber left session %d", session.ID)
}
