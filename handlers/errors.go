package handlers

import (
	"errors"
	"log"

	"duel-game-system/game"
	"duel-game-system/middleware"
	"duel-game-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps domain errors to status codes. Anything unknown is a 500.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(status).JSON(fiber.Map{
			"error": "internal error",
			"cause": err.Error(),
		})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var (
		illegal  *game.IllegalActionError
		dup      *game.DuplicateSubmissionError
		finished *game.MatchFinishedError
		notReady *game.RoundNotReadyError
		notFound *game.ParticipantNotFoundError
		mismatch *game.RoundMismatchError
	)
	switch {
	case errors.Is(err, game.ErrInvalidAction), errors.Is(err, game.ErrUnknownDifficulty),
		errors.Is(err, services.ErrInvalidUsername):
		return fiber.StatusBadRequest
	case errors.As(err, &illegal):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &notFound), errors.Is(err, services.ErrNotInRoom):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrPlayerNotFound), errors.Is(err, services.ErrRoomNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, game.ErrDeadlineNotReached):
		return fiber.StatusTooEarly
	case errors.As(err, &dup), errors.As(err, &finished), errors.As(err, &notReady), errors.As(err, &mismatch),
		errors.Is(err, services.ErrRoomFull), errors.Is(err, services.ErrRoomNotWaiting),
		errors.Is(err, services.ErrAlreadyInRoom), errors.Is(err, services.ErrMatchNotStarted),
		errors.Is(err, services.ErrNotMachineMatch):
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

func playerID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.PlayerIDLocal).(string)
	return id
}

func deviceID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.DeviceIDLocal).(string)
	return id
}
