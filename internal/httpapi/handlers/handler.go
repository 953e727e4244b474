package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/gemini-chat/internal/chat"
	"github.com/suPer8Hu/gemini-chat/internal/common"
	"github.com/suPer8Hu/gemini-chat/internal/httpapi/middleware"
	"github.com/suPer8Hu/gemini-chat/internal/workspace"
	"go.uber.org/zap"
)

// JobPublisher enqueues background generation jobs; *rabbitmq.Publisher satisfies it.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Orch    *workspace.Orchestrator
	ChatSvc *chat.Service
	Jobs    JobPublisher // nil disables async generation
	Log     *zap.Logger
}

func NewHandler(orch *workspace.Orchestrator, svc *chat.Service, jobs JobPublisher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Orch: orch, ChatSvc: svc, Jobs: jobs, Log: log.Named("http")}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func userID(c *gin.Context) (string, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}

// failWith maps domain errors onto the response envelope. Anything unknown is
// logged and reported as an internal error.
func (h *Handler) failWith(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, workspace.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10002, "message is empty")
	case errors.Is(err, workspace.ErrEmptyTitle):
		common.Fail(c, http.StatusBadRequest, 10004, "title is empty")
	case errors.Is(err, chat.ErrUnsupportedFormat):
		common.Fail(c, http.StatusBadRequest, 10005, "unsupported format")
	case errors.Is(err, chat.ErrChatNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "chat not found")
	case errors.Is(err, workspace.ErrBusy):
		common.Fail(c, http.StatusConflict, 40901, "a message is already being sent")
	default:
		h.Log.Error(op+" failed",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.String("user_id", c.GetString(middleware.UserIDKey)),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}
