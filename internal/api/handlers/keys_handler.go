package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/service"
)

type ApiKeyHandler struct {
	s service.ApiKeyService
}

func NewApiKeyHandler(service service.ApiKeyService) *ApiKeyHandler {
	return &ApiKeyHandler{s: service}
}

type apiKeyCreation struct {
	Label string `json:"label"`
}

func (h *ApiKeyHandler) CreateApiKey(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	var body apiKeyCreation
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Unable to parse json",
			})
		}
	}

	key, err := h.s.Create(c.Context(), userID, body.Label)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(key)
}

func (h *ApiKeyHandler) ListKeys(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}

	keys, err := h.s.List(c.Context(), userID)
	if err != nil {
		return errorResponse(c, err)
	}
	if keys == nil {
		keys = []*models.ApiKey{}
	}

	return c.Status(fiber.StatusOK).JSON(keys)
}

func (h *ApiKeyHandler) RemoveAPIKey(c *fiber.Ctx) error {
	userID, authed := GetUserID(c)
	if !authed {
		return unauthorized(c)
	}
	keyID, err := queryID(c)
	if err != nil {
		return errorResponse(c, err)
	}

	if err := h.s.Remove(c.Context(), userID, keyID); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}
