package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/service"
)

const triggerUsage = "POST to this endpoint with the X-Trigger-Token header to publish every due scheduled post."

type TriggerHandler struct {
	s service.PostService
}

func NewTriggerHandler(service service.PostService) *TriggerHandler {
	return &TriggerHandler{s: service}
}

func (h *TriggerHandler) Usage(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": triggerUsage,
	})
}

func (h *TriggerHandler) TriggerScheduledPosts(c *fiber.Ctx) error {
	if _, err := h.s.FailExpiredLeases(c.Context()); err != nil {
		return errorResponse(c, err)
	}

	summary, err := h.s.ProcessDuePosts(c.Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}
