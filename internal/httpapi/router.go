package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gemini-chat/internal/common"
	"github.com/suPer8Hu/gemini-chat/internal/config"
	"github.com/suPer8Hu/gemini-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/gemini-chat/internal/httpapi/middleware"
	"go.uber.org/zap"
)

func NewRouter(cfg config.Config, h *handlers.Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/")
	api.Use(middleware.Identity(cfg.JWTSecret, cfg.DemoUserID))

	ws := api.Group("/workspace")
	ws.GET("", h.GetWorkspace)
	ws.POST("/messages", h.SendMessage)
	ws.POST("/new", h.NewChat)
	ws.POST("/refresh", h.RefreshWorkspace)
	ws.POST("/chats/:chat_id/select", h.SelectChat)
	ws.PATCH("/chats/:chat_id", h.RenameChat)
	ws.DELETE("/chats/:chat_id", h.DeleteChat)

	api.GET("/chats", h.ListChats)
	api.GET("/chats/:chat_id/messages", h.ListChatMessages)
	api.GET("/chats/:chat_id/export", h.ExportChat)
	api.POST("/chats/:chat_id/messages/async", h.SendChatMessageAsync)
	api.GET("/jobs/:job_id", h.GetChatJob)

	return r
}
