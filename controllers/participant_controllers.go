package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/services"
	"github.com/tablemate/tablemate/utils"
)

type ParticipantController struct {
	Participants *services.ParticipantService
}

func NewParticipantController(db *gorm.DB) *ParticipantController {
	return &ParticipantController{Participants: services.NewParticipantService(db)}
}

// Join -> daftarkan satu orang ke sesi. Nama divalidasi di boundary ini
// sebelum menyentuh store.
func (pc *ParticipantController) Join(c *gin.Context) {
	idStr := c.Param("session_id")
	sessionID, _ := strconv.Atoi(idStr)

	type reqBody struct {
		DisplayName string `json:"display_name" binding:"required"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(strings.TrimSpace(req.DisplayName)) < 3 {
		utils.RespondError(c, http.StatusBadRequest, ErrNameTooShort)
		return
	}

	participant, err := pc.Participants.Join(uint(sessionID), req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNameTooShort):
			utils.RespondError(c, http.StatusBadRequest, err)
		case errors.Is(err, services.ErrSessionNotActive):
			utils.RespondError(c, http.StatusConflict, err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	// Klien menyimpan participant_id ini secara lokal sebagai "siapa saya"
	utils.RespondJSON(c, http.StatusCreated, "Participant joined", participant)
}

// Leave -> soft-delete; atribusi item pesanan tidak ikut hilang
func (pc *ParticipantController) Leave(c *gin.Context) {
	idStr := c.Param("participant_id")
	id, _ := strconv.Atoi(idStr)

	if err := pc.Participants.Leave(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Participant left", gin.H{"participant_id": id})
}

// Heartbeat -> sinyal kehadiran; juga masukan untuk heuristik perpanjangan sesi
func (pc *ParticipantController) Heartbeat(c *gin.Context) {
	idStr := c.Param("participant_id")
	id, _ := strconv.Atoi(idStr)

	if err := pc.Participants.Heartbeat(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Heartbeat recorded", gin.H{"participant_id": id})
}

// ListParticipants -> semua participant sesi, termasuk yang sudah keluar
func (pc *ParticipantController) ListParticipants(c *gin.Context) {
	idStr := c.Param("session_id")
	sessionID, _ := strconv.Atoi(idStr)

	participants, err := pc.Participants.ListParticipants(uint(sessionID))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of participants", participants)
}
