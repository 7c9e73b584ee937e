package handlers

import (
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLeaderboardRoutes(app *fiber.App, stats *services.StatsService) {
	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", services.DefaultLeaderboardSize)
		entries, err := stats.Leaderboard(limit)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})
}
