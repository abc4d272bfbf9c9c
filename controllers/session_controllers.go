package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/services"
	"github.com/tablemate/tablemate/utils"
)

type SessionController struct {
	Sessions *services.SessionService
}

func NewSessionController(db *gorm.DB) *SessionController {
	return &SessionController{Sessions: services.NewSessionService(db)}
}

// ObtainSession -> ambil sesi aktif meja atau buat yang baru (misal saat scan QR)
func (sc *SessionController) ObtainSession(c *gin.Context) {
	type reqBody struct {
		TableID      uint `json:"table_id" binding:"required"`
		RestaurantID uint `json:"restaurant_id" binding:"required"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.ObtainSession(req.TableID, req.RestaurantID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session obtained", gin.H{
		"session":   session,
		"remaining": utils.FormatRemaining(session.ExpiresAt),
	})
}

// GetSession -> detail 1 sesi beserta participant-nya
func (sc *SessionController) GetSession(c *gin.Context) {
	idStr := c.Param("session_id")
	id, _ := strconv.Atoi(idStr)

	session, err := sc.Sessions.GetSession(uint(id))
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session detail", gin.H{
		"session":   session,
		"remaining": utils.FormatRemaining(session.ExpiresAt),
	})
}

// GetCurrentSession -> resolusi token -> sesi, untuk klien yang hanya punya
// token (misal refresh halaman setelah scan). session_id diisi middleware.
func (sc *SessionController) GetCurrentSession(c *gin.Context) {
	sessionID := c.GetUint("session_id")

	session, err := sc.Sessions.GetSession(sessionID)
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session detail", gin.H{
		"session":   session,
		"remaining": utils.FormatRemaining(session.ExpiresAt),
	})
}

// ExtendSession -> perpanjangan eksplisit, terpisah dari heuristik aktivitas
func (sc *SessionController) ExtendSession(c *gin.Context) {
	idStr := c.Param("session_id")
	id, _ := strconv.Atoi(idStr)

	type reqBody struct {
		Minutes int `json:"minutes"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Minutes <= 0 {
		utils.RespondError(c, http.StatusBadRequest, ErrInvalidMinutes)
		return
	}

	session, err := sc.Sessions.ExtendSession(uint(id), req.Minutes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session extended", gin.H{
		"session":   session,
		"remaining": utils.FormatRemaining(session.ExpiresAt),
	})
}

// EndSession -> tutup sesi dengan alasan; idempoten terhadap sesi yang sudah ditutup
func (sc *SessionController) EndSession(c *gin.Context) {
	idStr := c.Param("session_id")
	id, _ := strconv.Atoi(idStr)

	type reqBody struct {
		Reason string `json:"reason" binding:"required"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := sc.Sessions.EndSession(uint(id), req.Reason); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidEndReason):
			utils.RespondError(c, http.StatusBadRequest, ErrInvalidReason)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session ended", gin.H{
		"session_id": id,
		"reason":     req.Reason,
	})
}
