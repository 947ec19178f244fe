package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/service"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

type TwitterHandler struct {
	ps service.PostService
	cs service.CredentialService
}

func NewTwitterHandler(ps service.PostService, cs service.CredentialService) *TwitterHandler {
	return &TwitterHandler{ps: ps, cs: cs}
}

// publishResponse renders the outcome of a publish for the dashboard. A post
// is present whenever a publish attempt was made.
func publishResponse(c *fiber.Ctx, post *models.Post, err error) error {
	if err == nil {
		return c.Status(fiber.StatusOK).JSON(transfer.PublishResult{
			Success:  true,
			PostID:   post.ID,
			RemoteID: *post.RemoteID,
		})
	}

	status := errorStatus(err)
	result := transfer.PublishResult{
		Success:    false,
		Error:      errorMessage(err, status),
		Details:    details(err),
		HTTPStatus: status,
	}
	if post != nil {
		result.PostID = post.ID
	}
	if status == fiber.StatusInternalServerError {
		slog.Error("publish failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(result)
}

func (h *TwitterHandler) PublishNow(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	var body transfer.PostNow
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	post, err := h.ps.PublishNow(c.Context(), userID, body.Content)
	return publishResponse(c, post, err)
}

func (h *TwitterHandler) Verify(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	user, err := h.cs.Verify(c.Context(), userID)
	if err != nil {
		status := errorStatus(err)
		result := transfer.VerifyResult{
			Success:    false,
			Error:      errorMessage(err, status),
			Details:    details(err),
			HTTPStatus: status,
		}
		return c.Status(status).JSON(result)
	}

	return c.Status(fiber.StatusOK).JSON(transfer.VerifyResult{
		Success: true,
		User:    user,
	})
}
