package worker

import (
	"context"
	"errors"
	"time"

	"github.com/suPer8Hu/gemini-chat/internal/chat"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Processor runs one background generation job against the chat store.
type Processor struct {
	repo *chat.Repo
	svc  *chat.Service
	log  *zap.Logger
}

func NewProcessor(repo *chat.Repo, svc *chat.Service, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{repo: repo, svc: svc, log: log.Named("worker")}
}

// IsPermanent reports whether retrying the job cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, chat.ErrChatNotFound)
}

// Handle generates and stores the reply for jobID. The job row is marked failed
// only when the error is permanent or lastAttempt is set; otherwise it stays
// running for the next delivery.
func (p *Processor) Handle(ctx context.Context, jobID string, lastAttempt bool) error {
	start := time.Now()
	log := p.log.With(zap.String("job_id", jobID))

	if err := p.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		log.Warn("mark running failed", zap.Error(err))
	}

	j, err := p.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status == chat.JobSucceeded || j.Status == chat.JobFailed {
		log.Info("job already finished, skipping", zap.String("status", string(j.Status)))
		return nil
	}

	genStart := time.Now()
	_, msg, err := p.svc.GenerateAssistantReplyAndInsert(ctx, j.UserID, j.ChatID)
	genCost := time.Since(genStart)
	if err != nil {
		if lastAttempt || IsPermanent(err) {
			if markErr := p.repo.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
				log.Error("mark job failed", zap.Error(markErr))
			}
		}
		log.Warn("job failed",
			zap.Duration("gen", genCost),
			zap.Duration("total", time.Since(start)),
			zap.Bool("last_attempt", lastAttempt),
			zap.Error(err),
		)
		return err
	}

	if err := p.repo.MarkJobSucceeded(ctx, jobID, msg.ID); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("chat_id", j.ChatID),
		zap.String("message_id", msg.ID),
		zap.Duration("gen", genCost),
		zap.Duration("total", time.Since(start)),
	}
	if total := time.Since(start); total > 2*time.Second {
		log.Info("job_timing slow", fields...)
	} else {
		log.Debug("job_timing", fields...)
	}
	return nil
}
