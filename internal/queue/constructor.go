package queue

import (
	"github.com/maheshrc27/xscheduler/internal/service"
)

// Queue runs publish tasks delivered by asynq.
type Queue struct {
	ps service.PostService
}

func NewQueue(ps service.PostService) *Queue {
	return &Queue{
		ps: ps,
	}
}

const TaskTypePublishPost = "post:publish"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}
