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

type CartController struct {
	Carts *services.CartService
}

func NewCartController(db *gorm.DB) *CartController {
	return &CartController{Carts: services.NewCartService(db)}
}

// GetCart -> full reload: order cart sesi lengkap dengan menu dan participant
// penambahnya. Total selalu diturunkan dari baris, bukan dari subtotal.
func (cc *CartController) GetCart(c *gin.Context) {
	idStr := c.Param("session_id")
	sessionID, _ := strconv.Atoi(idStr)

	order, err := cc.Carts.CartSnapshot(uint(sessionID))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	total := services.Total(order.OrderItems)
	utils.RespondJSON(c, http.StatusOK, "Cart snapshot", gin.H{
		"order":         order,
		"total":         total,
		"total_display": utils.FormatCurrency(total),
	})
}

// AddItem -> tambah satu baris baru; add berulang tidak pernah digabung
func (cc *CartController) AddItem(c *gin.Context) {
	idStr := c.Param("session_id")
	sessionID, _ := strconv.Atoi(idStr)

	type reqBody struct {
		ParticipantID  uint     `json:"participant_id" binding:"required"`
		MenuID         uint     `json:"menu_id" binding:"required"`
		Quantity       int      `json:"quantity" binding:"required"`
		Customizations []string `json:"customizations"`
		Notes          string   `json:"notes"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	item, err := cc.Carts.AddItem(uint(sessionID), req.ParticipantID, req.MenuID,
		req.Quantity, req.Customizations, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			utils.RespondError(c, http.StatusBadRequest, err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Item added", item)
}

// UpdateItem -> ubah jumlah; <= 0 berarti hapus
func (cc *CartController) UpdateItem(c *gin.Context) {
	idStr := c.Param("item_id")
	itemID, _ := strconv.Atoi(idStr)

	type reqBody struct {
		ParticipantID *uint `json:"participant_id"`
		Quantity      int   `json:"quantity"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := cc.Carts.UpdateQuantity(uint(itemID), req.Quantity, req.ParticipantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, http.StatusNotFound, err)
			return
		}
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Item updated", gin.H{"item_id": itemID})
}

// RemoveItem -> hapus baris; baris yang sudah hilang tetap sukses
func (cc *CartController) RemoveItem(c *gin.Context) {
	idStr := c.Param("item_id")
	itemID, _ := strconv.Atoi(idStr)

	origin := originParticipant(c)
	if err := cc.Carts.RemoveItem(uint(itemID), origin); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Item removed", gin.H{"item_id": itemID})
}

// ClearCart -> hapus semua baris order; idempoten terhadap cart kosong
func (cc *CartController) ClearCart(c *gin.Context) {
	idStr := c.Param("order_id")
	orderID, _ := strconv.Atoi(idStr)

	origin := originParticipant(c)
	if err := cc.Carts.ClearCart(uint(orderID), origin); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Cart cleared", gin.H{"order_id": orderID})
}

// SubmitOrder -> cart menjadi snapshot 'submitted'; add berikutnya membuat cart baru
func (cc *CartController) SubmitOrder(c *gin.Context) {
	idStr := c.Param("order_id")
	orderID, _ := strconv.Atoi(idStr)

	origin := originParticipant(c)
	order, err := cc.Carts.SubmitOrder(uint(orderID), origin)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotCart):
			utils.RespondError(c, http.StatusConflict, err)
		case errors.Is(err, gorm.ErrRecordNotFound):
			utils.RespondError(c, http.StatusNotFound, err)
		default:
			utils.RespondError(c, http.StatusInternalServerError, err)
		}
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order submitted", order)
}

// originParticipant membaca participant_id mutator dari query string, untuk
// atribusi origin di change feed.
func originParticipant(c *gin.Context) *uint {
	raw := c.Query("participant_id")
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil
	}
	u := uint(id)
	return &u
}
