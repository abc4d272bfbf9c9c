package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tablemate/tablemate/controllers"
	"github.com/tablemate/tablemate/middlewares"
)

func SetupRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Inisialisasi controller
	sessionCtrl := controllers.NewSessionController(db)
	participantCtrl := controllers.NewParticipantController(db)
	cartCtrl := controllers.NewCartController(db)
	menuCtrl := controllers.NewMenuController(db)
	feedCtrl := controllers.NewFeedController(db)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      SESSION LIFECYCLE
	// ----------------------------------------------------------------
	r.POST("/sessions", sessionCtrl.ObtainSession)
	r.GET("/sessions/:session_id", sessionCtrl.GetSession)

	// Resolusi by-token untuk klien yang hanya menyimpan token sesi
	authed := r.Group("/")
	authed.Use(middlewares.SessionTokenMiddleware())
	{
		authed.GET("/session", sessionCtrl.GetCurrentSession)
	}

	r.PATCH("/sessions/:session_id/extend", sessionCtrl.ExtendSession)
	r.PATCH("/sessions/:session_id/end", sessionCtrl.EndSession)

	// ----------------------------------------------------------------
	//                      PARTICIPANTS
	// ----------------------------------------------------------------
	join := r.Group("/")
	join.Use(middlewares.NewJoinRateLimiter())
	{
		join.POST("/sessions/:session_id/participants", participantCtrl.Join)
	}
	r.GET("/sessions/:session_id/participants", participantCtrl.ListParticipants)
	r.PATCH("/participants/:participant_id/leave", participantCtrl.Leave)
	r.PATCH("/participants/:participant_id/heartbeat", participantCtrl.Heartbeat)

	// ----------------------------------------------------------------
	//                      SHARED CART
	// ----------------------------------------------------------------
	r.GET("/sessions/:session_id/cart", cartCtrl.GetCart)
	r.POST("/sessions/:session_id/cart/items", cartCtrl.AddItem)
	r.PATCH("/cart/items/:item_id", cartCtrl.UpdateItem)
	r.DELETE("/cart/items/:item_id", cartCtrl.RemoveItem)
	r.DELETE("/orders/:order_id/items", cartCtrl.ClearCart)
	r.POST("/orders/:order_id/submit", cartCtrl.SubmitOrder)

	// ----------------------------------------------------------------
	//                      CATALOG (read-only)
	// ----------------------------------------------------------------
	r.GET("/menus", menuCtrl.GetAllMenus)
	r.GET("/menus/:menu_id", menuCtrl.GetMenuByID)

	// ----------------------------------------------------------------
	//                      CHANGE FEED (websocket)
	// ----------------------------------------------------------------
	r.GET("/ws/session", feedCtrl.SessionFeedHandler)

	return r
}
