package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"duel-game-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultLeaderboardSize = 10

type StatsService struct {
	DB     *gorm.DB
	Badges *BadgeService
}

func NewStatsService(db *gorm.DB, badges *BadgeService) *StatsService {
	return &StatsService{DB: db, Badges: badges}
}

// OnMatchConcluded folds the conclusion of roomID into both players' stats.
// It reports false when the conclusion was already applied, so redelivery
// never double counts.
func (s *StatsService) OnMatchConcluded(roomID string) (bool, error) {
	var (
		c       models.MatchConclusion
		applied bool
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("room_id = ?", roomID).First(&c).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrConclusionAbsent
		}
		if err != nil {
			return err
		}
		if c.Processed {
			return nil
		}

		solo := c.Mode == models.RoomModeMachine
		if err := applyResult(tx, c.WinnerID, true, solo, c); err != nil {
			return err
		}
		if err := applyResult(tx, c.LoserID, false, solo, c); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.MatchConclusion{}).Where("id = ?", c.ID).
			Updates(map[string]interface{}{"processed": true, "processed_at": now}).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}

	log.Printf("📊 [Stats] Applied match %s: %s beat %s in %d rounds", roomID, c.WinnerID, c.LoserID, c.TotalRounds)
	if s.Badges != nil {
		for _, id := range []string{c.WinnerID, c.LoserID} {
			if id == models.MachinePlayerID {
				continue
			}
			if _, err := s.Badges.AutoAwardBadges(id); err != nil {
				log.Printf("⚠️ [Stats] Badge check for %s failed: %v", id, err)
			}
		}
	}
	return true, nil
}

// applyResult updates one side. The machine has no stats row.
func applyResult(tx *gorm.DB, playerID string, won, solo bool, c models.MatchConclusion) error {
	if playerID == models.MachinePlayerID {
		return nil
	}
	stats, err := lockStats(tx, playerID)
	if err != nil {
		return fmt.Errorf("stats of %s: %w", playerID, err)
	}

	rounds := int64(c.TotalRounds)
	stats.GamesPlayed++
	if solo {
		stats.SoloRounds += rounds
		stats.LastDifficulty = c.Difficulty
		if won {
			stats.SoloWins++
			stats.SoloCurrentStreak++
			if stats.SoloCurrentStreak > stats.SoloBestStreak {
				stats.SoloBestStreak = stats.SoloCurrentStreak
			}
		} else {
			stats.SoloLosses++
			stats.SoloCurrentStreak = 0
		}
	} else {
		stats.TotalRounds += rounds
		if won {
			stats.MultiplayerWins++
			stats.CurrentStreak++
			if stats.CurrentStreak > stats.BestStreak {
				stats.BestStreak = stats.CurrentStreak
			}
		} else {
			stats.MultiplayerLosses++
			stats.CurrentStreak = 0
		}
	}
	if won {
		now := time.Now().UTC()
		stats.LastWinAt = &now
	}
	return tx.Save(stats).Error
}

// lockStats reads the stats row of playerID FOR UPDATE so two conclusions
// of the same player serialize on it. A missing row is created first.
func lockStats(tx *gorm.DB, playerID string) (*models.PlayerStats, error) {
	if _, err := ensureStats(tx, playerID); err != nil {
		return nil, err
	}
	var stats models.PlayerStats
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_id = ?", playerID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// ProcessPending applies up to limit conclusions that were not applied yet.
func (s *StatsService) ProcessPending(limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	var rooms []string
	if err := s.DB.Model(&models.MatchConclusion{}).
		Where("processed = ?", false).
		Order("created_at ASC").
		Limit(limit).
		Pluck("room_id", &rooms).Error; err != nil {
		return 0, err
	}
	applied := 0
	for _, id := range rooms {
		ok, err := s.OnMatchConcluded(id)
		if err != nil {
			log.Printf("❌ [Stats] Conclusion of %s failed again: %v", id, err)
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

// Leaderboard returns the top players by multiplayer wins.
func (s *StatsService) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultLeaderboardSize
	}
	var entries []models.LeaderboardEntry
	err := s.DB.Table("player_stats AS s").
		Select("s.player_id, p.username, p.handle, s.multiplayer_wins, s.best_streak, s.total_rounds").
		Joins("INNER JOIN players p ON p.id = s.player_id AND p.deleted_at IS NULL").
		Where("s.deleted_at IS NULL").
		Order("s.multiplayer_wins DESC, s.best_streak DESC, p.username ASC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// GetRecentMatches returns finished matches of playerID in the last N days.
func (s *StatsService) GetRecentMatches(playerID string, days int) ([]models.MatchConclusion, error) {
	if days <= 0 {
		days = 7
	}
	var out []models.MatchConclusion
	since := time.Now().AddDate(0, 0, -days)
	err := s.DB.Where("(winner_id = ? OR loser_id = ?) AND created_at >= ?", playerID, playerID, since).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}
