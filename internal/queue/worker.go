package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/maheshrc27/xscheduler/internal/service"
)

func (q *Queue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	return mux
}

// HandlePublishPostTask publishes the post named by the task. Only storage
// errors are handed back to asynq for a retry: a publish outcome, good or
// bad, is already recorded on the post.
func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	post, err := q.ps.ProcessDuePost(ctx, payload.PostID)
	switch {
	case err == nil:
		slog.Info("scheduled post published", "post_id", post.ID)
		return nil
	case errors.Is(err, service.ErrPostNotClaimable),
		errors.Is(err, service.ErrAlreadyPublished),
		errors.Is(err, service.ErrPostNotFound):
		slog.Info("publish task skipped", "post_id", payload.PostID, "reason", err)
		return nil
	case post != nil:
		// The post resolved to failed.
		return nil
	default:
		return err
	}
}
