// handlers/rooms.go
package handlers

import (
	"duel-game-system/middleware"
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRoomRoutes(app *fiber.App, rooms *services.RoomService, players *services.PlayerService) {
	secured := app.Group("/rooms", middleware.PlayerContextMiddleware(players))

	secured.Post("/", func(c *fiber.Ctx) error {
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON", err)
			}
		}
		room, err := rooms.CreateRoom(playerID(c), req.Difficulty)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(room)
	})

	secured.Post("/join", func(c *fiber.Ctx) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		if req.Code == "" {
			return badRequest(c, "code is required", nil)
		}
		room, err := rooms.JoinRoom(req.Code, playerID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(room)
	})

	secured.Get("/code/:code", func(c *fiber.Ctx) error {
		room, err := rooms.GetRoomByCode(c.Params("code"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(room)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		room, err := rooms.GetRoom(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(room)
	})

	secured.Post("/:id/ready", func(c *fiber.Ctx) error {
		req := struct {
			Ready *bool `json:"ready"`
		}{}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON", err)
			}
		}
		ready := true
		if req.Ready != nil {
			ready = *req.Ready
		}
		room, err := rooms.SetReady(c.Params("id"), playerID(c), ready)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(room)
	})

	secured.Post("/:id/leave", func(c *fiber.Ctx) error {
		if err := rooms.LeaveRoom(c.Params("id"), playerID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
