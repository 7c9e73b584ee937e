// handlers/matches.go
package handlers

import (
	"duel-game-system/game"
	"duel-game-system/middleware"
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMatchRoutes(app *fiber.App, matches *services.MatchService, players *services.PlayerService) {
	// SSE lives outside /matches: EventSource authenticates by query, not header
	app.Get("/stream/matches/:id", middleware.SSEAuthMiddleware(players), matches.StreamMatchSSE)

	secured := app.Group("/matches", middleware.PlayerContextMiddleware(players))

	secured.Post("/machine", func(c *fiber.Ctx) error {
		var req struct {
			Difficulty string `json:"difficulty"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid JSON", err)
			}
		}
		view, err := matches.StartMachineMatch(playerID(c), req.Difficulty)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(view)
	})

	secured.Get("/:id", func(c *fiber.Ctx) error {
		view, err := matches.GetState(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	secured.Get("/:id/history", func(c *fiber.Ctx) error {
		history, err := matches.GetHistory(c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(history)
	})

	secured.Post("/:id/moves", func(c *fiber.Ctx) error {
		var req struct {
			Round  int    `json:"round"`
			Action string `json:"action"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		action, err := game.ParseAction(req.Action)
		if err != nil {
			return respondError(c, err)
		}
		res, err := matches.SubmitMove(c.Params("id"), playerID(c), req.Round, action)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	secured.Get("/:id/rounds/:round/moves", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil || round < 1 {
			return badRequest(c, "round must be a positive integer", err)
		}
		moves, err := matches.GetMoves(c.Params("id"), round)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(moves)
	})

	// Solo clients call this when the player starts the round countdown
	secured.Post("/:id/rounds/:round/start", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil || round < 1 {
			return badRequest(c, "round must be a positive integer", err)
		}
		view, err := matches.StartRound(c.Params("id"), playerID(c), round)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	})

	secured.Post("/:id/rounds/:round/resolve", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil || round < 1 {
			return badRequest(c, "round must be a positive integer", err)
		}
		o, err := matches.ResolveRound(c.Params("id"), round)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(o)
	})

	// Clients call this when their countdown hits zero; the server clock decides
	secured.Post("/:id/rounds/:round/timeout", func(c *fiber.Ctx) error {
		round, err := c.ParamsInt("round")
		if err != nil || round < 1 {
			return badRequest(c, "round must be a positive integer", err)
		}
		o, err := matches.ExpireRound(c.Params("id"), round)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(o)
	})
}
