package workers

import (
	"context"
	"log"
	"time"

	"duel-game-system/services"
)

// ConclusionProcessor applies pending match conclusions to player stats.
type ConclusionProcessor interface {
	ProcessPending(limit int) (int, error)
}

// PollConclusions redelivers conclusions whose stats update failed or was
// interrupted. Each conclusion is applied at most once.
func PollConclusions(ctx context.Context, stats ConclusionProcessor, pollInterval time.Duration, batch int) {
	log.Println("Starting match conclusion polling (DB-backed)...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Conclusion polling stopped.")
			return
		case <-ticker.C:
			applied, err := stats.ProcessPending(batch)
			if err != nil {
				log.Printf("❌ Error polling conclusions: %v", err)
				continue
			}
			if applied > 0 {
				log.Printf("✅ Applied %d pending conclusion(s) to player stats.", applied)
			}
		}
	}
}

var _ ConclusionProcessor = (*services.StatsService)(nil)
