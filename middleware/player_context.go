// middleware/player_context.go
package middleware

import (
	"errors"
	"log"
	"strings"

	"duel-game-system/models"
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

const (
	PlayerIDLocal = "player_id"
	DeviceIDLocal = "device_id"
)

// PlayerLookup resolves the device credential to a player.
type PlayerLookup interface {
	GetPlayerByDevice(deviceID string) (*models.Player, error)
}

// PlayerContextMiddleware resolves X-Device-ID into the acting player.
func PlayerContextMiddleware(players PlayerLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := strings.TrimSpace(c.Get("X-Device-ID"))
		if deviceID == "" {
			log.Printf("❌ [PLAYER_CTX] X-Device-ID missing on %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Device-ID",
			})
		}
		return attachPlayer(c, players, deviceID)
	}
}

// SSEAuthMiddleware reads `device_id` from the query, since EventSource
// cannot send custom headers.
//
// Usage:
//
//	app.Get("/stream/matches/:id", middleware.SSEAuthMiddleware(players), matches.StreamMatchSSE)
func SSEAuthMiddleware(players PlayerLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deviceID := strings.TrimSpace(c.Query("device_id"))
		if deviceID == "" {
			log.Printf("[SSEAuth] ❌ Missing device_id for %s", c.Path())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing device_id in query",
			})
		}
		return attachPlayer(c, players, deviceID)
	}
}

func attachPlayer(c *fiber.Ctx, players PlayerLookup, deviceID string) error {
	player, err := players.GetPlayerByDevice(deviceID)
	if err != nil {
		if errors.Is(err, services.ErrPlayerNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown device",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve player",
			"cause": err.Error(),
		})
	}
	c.Locals(PlayerIDLocal, player.ID)
	c.Locals(DeviceIDLocal, player.DeviceID)
	return c.Next()
}
