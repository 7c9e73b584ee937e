// handlers/players.go
package handlers

import (
	"strconv"

	"duel-game-system/middleware"
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlayerRoutes(app *fiber.App, players *services.PlayerService, stats *services.StatsService, badges *services.BadgeService) {
	// 🔓 Public routes, still behind Gateway auth
	app.Post("/players", func(c *fiber.Ctx) error {
		var req struct {
			Username string `json:"username"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		p, err := players.CreateAnonymousPlayer(req.Username)
		if err != nil {
			return respondError(c, err)
		}
		// device_id is only ever returned here; it is the player's credential
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":        p.ID,
			"username":  p.Username,
			"handle":    p.Handle,
			"device_id": p.DeviceID,
			"stats":     p.Stats,
		})
	})

	app.Get("/players/search", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		found, err := players.SearchPlayers(c.Query("q"), limit)
		if err != nil {
			return respondError(c, err)
		}
		type PlayerSummary struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Handle   string `json:"handle"`
		}
		res := make([]PlayerSummary, len(found))
		for i, p := range found {
			res[i] = PlayerSummary{ID: p.ID, Username: p.Username, Handle: p.Handle}
		}
		return c.JSON(res)
	})

	app.Get("/players/:id", func(c *fiber.Ctx) error {
		p, err := players.GetPlayer(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		st, err := players.GetPlayerStats(p.ID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"id":       p.ID,
			"username": p.Username,
			"handle":   p.Handle,
			"stats":    st,
		})
	})

	app.Get("/players/:id/badges", func(c *fiber.Ctx) error {
		list, err := badges.PlayerBadges(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	// 🔐 Acting player
	me := app.Group("/me", middleware.PlayerContextMiddleware(players))

	// the owner's own record, device credential included
	me.Get("/", func(c *fiber.Ctx) error {
		p, err := players.GetPlayerByDevice(deviceID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	me.Post("/heartbeat", func(c *fiber.Ctx) error {
		if err := players.UpdateLastSeen(playerID(c)); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	me.Get("/stats", func(c *fiber.Ctx) error {
		st, err := players.GetPlayerStats(playerID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(st)
	})

	me.Get("/badges", func(c *fiber.Ctx) error {
		list, err := badges.PlayerBadges(playerID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	me.Get("/matches", func(c *fiber.Ctx) error {
		days, _ := strconv.Atoi(c.Query("days", "7"))
		list, err := stats.GetRecentMatches(playerID(c), days)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})
}
