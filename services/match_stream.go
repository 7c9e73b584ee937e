package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"duel-game-system/models"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

const streamPollInterval = time.Second

// StreamMatchSSE pushes the match view to a participant whenever the room
// changes, and a round event for every newly settled round.
func (s *MatchService) StreamMatchSSE(c *fiber.Ctx) error {
	playerID, _ := c.Locals("player_id").(string)
	roomID := fiberutils.CopyString(c.Params("id"))

	view, err := s.GetState(roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	member := false
	for _, p := range view.Participants {
		if p.ID == playerID {
			member = true
		}
	}
	if !member {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not a participant of this match"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		settled := len(view.History)
		var lastUpdate time.Time
		var room models.Room
		if err := s.DB.Select("updated_at").Where("id = ?", roomID).First(&room).Error; err == nil {
			lastUpdate = room.UpdatedAt
		}

		writeEvent(w, "state", view)
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				var current models.Room
				if err := s.DB.Select("updated_at", "status").Where("id = ?", roomID).First(&current).Error; err != nil {
					log.Printf("SSE query error for match %s: %v", roomID, err)
					return
				}
				if !current.UpdatedAt.After(lastUpdate) {
					// keepalive
					if _, err := w.WriteString(":\n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}
				lastUpdate = current.UpdatedAt

				next, err := s.GetState(roomID)
				if err != nil {
					log.Printf("SSE state error for match %s: %v", roomID, err)
					continue
				}
				for _, o := range next.History[settled:] {
					writeEvent(w, "round", o)
				}
				settled = len(next.History)
				writeEvent(w, "state", next)

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}
				if next.Phase.Terminal() {
					return
				}

			case <-done:
				// Server shutting down
				return
			}
		}
	})

	return nil
}

func writeEvent(w *bufio.Writer, event string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("SSE encode error: %v", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
