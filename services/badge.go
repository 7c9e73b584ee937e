package services

import (
	"fmt"
	"log"

	"duel-game-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// SeedBadgeTypes upserts models.BadgeTriggers by code.
func (s *BadgeService) SeedBadgeTypes() error {
	for _, trigger := range models.BadgeTriggers {
		bt := trigger
		bt.ID = uuid.NewString()
		if err := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "rarity", "threshold"}),
		}).Create(&bt).Error; err != nil {
			return fmt.Errorf("seed badge %s: %w", trigger.Code, err)
		}
	}
	return nil
}

// AutoAwardBadges checks all badge triggers for a player after a stats update
// and returns the newly awarded badges.
func (s *BadgeService) AutoAwardBadges(playerID string) ([]models.BadgeType, error) {
	var stats models.PlayerStats
	if err := s.DB.Where("player_id = ?", playerID).First(&stats).Error; err != nil {
		return nil, err
	}
	var types []models.BadgeType
	if err := s.DB.Find(&types).Error; err != nil {
		return nil, err
	}

	var awarded []models.BadgeType
	for _, bt := range types {
		if !meetsThreshold(&stats, bt.Threshold) {
			continue
		}
		pb := models.PlayerBadge{
			ID:          uuid.NewString(),
			PlayerID:    playerID,
			BadgeTypeID: bt.ID,
		}
		res := s.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}, {Name: "badge_type_id"}},
			DoNothing: true,
		}).Create(&pb)
		if res.Error != nil {
			return awarded, res.Error
		}
		if res.RowsAffected > 0 {
			awarded = append(awarded, bt)
			log.Printf("🎖️ Badge awarded: %s → %s", bt.Name, playerID)
		}
	}
	return awarded, nil
}

// PlayerBadges lists the badges of playerID, newest first.
func (s *BadgeService) PlayerBadges(playerID string) ([]models.PlayerBadge, error) {
	var out []models.PlayerBadge
	err := s.DB.Preload("BadgeType").Where("player_id = ?", playerID).
		Order("awarded_at DESC").Find(&out).Error
	return out, err
}

func meetsThreshold(stats *models.PlayerStats, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "games_played":
			if stats.GamesPlayed < required {
				return false
			}
		case "multiplayer_wins":
			if stats.MultiplayerWins < required {
				return false
			}
		case "best_streak":
			if stats.BestStreak < required {
				return false
			}
		case "total_rounds":
			if stats.TotalRounds < required {
				return false
			}
		case "solo_wins":
			if stats.SoloWins < required {
				return false
			}
		case "hard": // last solo match was a win on hard
			if stats.LastDifficulty != "hard" || stats.SoloCurrentStreak < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}
