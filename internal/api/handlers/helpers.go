package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/xscheduler/internal/service"
)

const settingsHint = "check your X API settings and run the connection test"

// GetUserID reads the caller stored by the auth middleware. It reports false
// when the local is missing or malformed.
func GetUserID(c *fiber.Ctx) (int64, bool) {
	raw, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
}

func errorStatus(err error) int {
	var remote *service.RemoteError
	switch {
	case errors.Is(err, service.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrCredentialsNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrCredentialsIncomplete),
		errors.Is(err, service.ErrCredentialsNotConnected):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrApiKeyNotFound),
		errors.Is(err, service.ErrUserNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrPostNotEditable),
		errors.Is(err, service.ErrPostNotClaimable),
		errors.Is(err, service.ErrAlreadyPublished),
		errors.Is(err, service.ErrApiKeyLimit):
		return fiber.StatusConflict
	case errors.As(err, &remote):
		if remote.StatusCode >= 400 {
			return remote.StatusCode
		}
		return fiber.StatusBadGateway
	case errors.Is(err, service.ErrTransport):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// details returns the remote payload as JSON. X answers in JSON but a proxy
// in front of it may not, in which case the body is sent as a string.
func details(err error) json.RawMessage {
	var remote *service.RemoteError
	if !errors.As(err, &remote) || len(remote.Body) == 0 {
		return nil
	}
	if json.Valid(remote.Body) {
		return json.RawMessage(remote.Body)
	}
	quoted, _ := json.Marshal(string(remote.Body))
	return quoted
}

func errorMessage(err error, status int) string {
	if status == fiber.StatusInternalServerError {
		return "something went wrong"
	}
	return err.Error()
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}

	body := fiber.Map{"error": errorMessage(err, status)}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	if service.IsCredentialError(err) {
		body["hint"] = settingsHint
	}
	if d := details(err); d != nil {
		body["details"] = d
	}
	return c.Status(status).JSON(body)
}

func queryID(c *fiber.Ctx) (int64, error) {
	id := c.QueryInt("id", 0)
	if id <= 0 {
		return 0, &service.ValidationError{Field: "id", Message: "id is required"}
	}
	return int64(id), nil
}
