package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/service"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

type SettingsHandler struct {
	s service.CredentialService
}

func NewSettingsHandler(service service.CredentialService) *SettingsHandler {
	return &SettingsHandler{s: service}
}

// GetSettingsInfo is also what the dashboard polls to notice a changed
// connection state.
func (h *SettingsHandler) GetSettingsInfo(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	settingsInfo, err := h.s.Get(c.Context(), userID)
	if errors.Is(err, service.ErrCredentialsNotFound) {
		return c.JSON(transfer.SettingsView{})
	}
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(settingsInfo)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	var settings transfer.SettingsUpdate
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.Save(c.Context(), userID, &settings); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":      "Settings saved, run the connection test to enable publishing",
		"is_connected": false,
	})
}
