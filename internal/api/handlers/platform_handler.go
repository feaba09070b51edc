package handlers

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/service"
)

type PlatformHandler struct {
	ps  service.PlatformService
	li  service.LinkedInService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, li service.LinkedInService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		li:  li,
		cfg: cfg,
	}
}

func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	authURL := h.ps.GetAuthURL(c.Context(), c.Params("platform"), c.Query("state"))
	if authURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported platform",
		})
	}
	return c.Redirect(authURL)
}

// CallbackHandler finishes the OAuth exchange without requiring a session:
// the credential is parked as a temporary connection keyed by state, and the
// frontend completes the handoff through CompleteConnection once the user is
// authenticated.
func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platform := c.Params("platform")

	switch platform {
	case models.PlatformLinkedIn:
		if err := h.li.LinkedInCallback(c.Context(), code, state); err != nil {
			slog.Info(err.Error())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "something went wrong",
			})
		}
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported platform",
		})
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts?linkedin_connected=true&state=%s", h.cfg.FrontendURL, state)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) CompleteConnection(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body struct {
		State string `json:"state"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	err := h.li.CompleteConnection(c.Context(), userID, body.State)
	switch {
	case errors.Is(err, service.ErrConnectionExpired):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Connection data not found or expired",
		})
	case errors.Is(err, service.ErrAccountConnected):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "This account is already connected to another user",
		})
	case err != nil:
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to complete connection",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account connected successfully",
	})
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	accountList, err := h.ps.List(c.Context(), userID)
	if err != nil {
		log.Println(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch social accounts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	userID := GetUserID(c)
	accountId := c.QueryInt("id", 0)

	err := h.ps.Delete(c.Context(), userID, int64(accountId))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to delete social account",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
