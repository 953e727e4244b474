package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gemini-chat/internal/common"
)

func (h *Handler) GetWorkspace(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	st, err := h.Orch.Current(c.Request.Context(), uid)
	if err != nil {
		h.failWith(c, "load workspace", err)
		return
	}
	common.OK(c, st)
}

type sendMessageReq struct {
	Message string `json:"message"`
}

// SendMessage runs a full submission and answers with the resulting state.
func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	st, err := h.Orch.Submit(c.Request.Context(), uid, req.Message)
	if err != nil {
		h.failWith(c, "submit", err)
		return
	}
	common.OK(c, st)
}

func (h *Handler) NewChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	st, err := h.Orch.NewChat(c.Request.Context(), uid)
	if err != nil {
		h.failWith(c, "new chat", err)
		return
	}
	common.OK(c, st)
}

func (h *Handler) RefreshWorkspace(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	st, err := h.Orch.Refresh(c.Request.Context(), uid)
	if err != nil {
		h.failWith(c, "refresh", err)
		return
	}
	common.OK(c, st)
}

func (h *Handler) SelectChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	if _, err := h.ChatSvc.ValidateChatOwner(c.Request.Context(), uid, chatID); err != nil {
		h.failWith(c, "select chat", err)
		return
	}
	st, err := h.Orch.Select(c.Request.Context(), uid, chatID)
	if err != nil {
		h.failWith(c, "select chat", err)
		return
	}
	common.OK(c, st)
}

type renameChatReq struct {
	Title string `json:"title"`
}

func (h *Handler) RenameChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	var req renameChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	chatID := c.Param("chat_id")
	if _, err := h.ChatSvc.ValidateChatOwner(c.Request.Context(), uid, chatID); err != nil {
		h.failWith(c, "rename chat", err)
		return
	}
	st, err := h.Orch.Rename(c.Request.Context(), uid, chatID, req.Title)
	if err != nil {
		h.failWith(c, "rename chat", err)
		return
	}
	common.OK(c, st)
}

func (h *Handler) DeleteChat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	if _, err := h.ChatSvc.ValidateChatOwner(c.Request.Context(), uid, chatID); err != nil {
		h.failWith(c, "delete chat", err)
		return
	}
	st, err := h.Orch.Delete(c.Request.Context(), uid, chatID)
	if err != nil {
		h.failWith(c, "delete chat", err)
		return
	}
	common.OK(c, st)
}
