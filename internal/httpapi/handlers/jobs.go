package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gemini-chat/internal/common"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sendAsyncReq struct {
	Message string `json:"message"`
}

// SendChatMessageAsync stores the user message now and queues the reply for
// the worker. An Idempotency-Key header makes retries return the same job.
// Messages written this way reach the workspace only on its next Select or
// Refresh; poll /jobs/:job_id or /chats/:chat_id/messages instead.
func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50300, "async generation disabled")
		return
	}

	var req sendAsyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	content := strings.TrimSpace(req.Message)
	if content == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	ctx := c.Request.Context()
	chatID := c.Param("chat_id")
	log := h.Log.With(zap.String("user_id", uid), zap.String("chat_id", chatID))

	j, created, err := h.ChatSvc.EnqueueUserMessage(ctx, uid, chatID, content, idempoKeyPtr)
	if err != nil {
		h.failWith(c, "enqueue message", err)
		return
	}

	if created {
		if err := h.Jobs.PublishJob(ctx, j.ID); err != nil {
			log.Error("publish job failed", zap.String("job_id", j.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		h.failWith(c, "get job", err)
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{"job": j})
}
