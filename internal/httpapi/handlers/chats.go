package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gemini-chat/internal/common"
)

func (h *Handler) ListChats(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chats, err := h.ChatSvc.ListChats(c.Request.Context(), uid)
	if err != nil {
		h.failWith(c, "list chats", err)
		return
	}
	common.OK(c, gin.H{"chats": chats})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, chatID)
	if err != nil {
		h.failWith(c, "list messages", err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID, "messages": msgs})
}

// ExportChat returns the raw transcript, Markdown unless ?format=html.
func (h *Handler) ExportChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	body, contentType, err := h.ChatSvc.ExportTranscript(c.Request.Context(), uid, chatID, c.Query("format"))
	if err != nil {
		h.failWith(c, "export chat", err)
		return
	}
	c.Data(http.StatusOK, contentType, body)
}
