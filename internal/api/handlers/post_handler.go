package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/service"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	var body transfer.PostCreation
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	var (
		post *models.Post
		err  error
	)
	switch body.Mode {
	case "draft":
		post, err = h.s.CreateDraft(c.Context(), userID, body.Content, body.ScheduledFor)
	case "schedule", "":
		post, err = h.s.Schedule(c.Context(), userID, body.Content, body.ScheduledFor)
	case "now":
		post, err = h.s.PublishNow(c.Context(), userID, body.Content)
		return publishResponse(c, post, err)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be draft, schedule or now",
			"field": "mode",
		})
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// ListPosts returns one post when ?id is given, otherwise the user's posts,
// optionally filtered by ?status.
func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	if postID := c.QueryInt("id", 0); postID != 0 {
		post, err := h.s.Get(c.Context(), userID, int64(postID))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID, c.Query("status"))
	if err != nil {
		return errorResponse(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}
	postID, err := queryID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	var body transfer.PostUpdate
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	post, err := h.s.Update(c.Context(), userID, postID, &body)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}
	postID, err := queryID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.s.Delete(c.Context(), userID, postID); err != nil {
		return errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) RetryPost(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}
	postID, err := queryID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	post, err := h.s.Retry(c.Context(), userID, postID)
	return publishResponse(c, post, err)
}

func (h *PostHandler) PostHistory(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}
	postID, err := queryID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	attempts, err := h.s.History(c.Context(), userID, postID)
	if err != nil {
		return errorResponse(c, err)
	}
	if attempts == nil {
		attempts = []*models.PublishAttempt{}
	}
	return c.Status(fiber.StatusOK).JSON(attempts)
}
