package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"duel-game-system/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const maxUsernameLength = 20

type PlayerService struct {
	DB *gorm.DB
}

func NewPlayerService(db *gorm.DB) *PlayerService {
	return &PlayerService{DB: db}
}

// NormalizeUsername trims and NFC-normalizes a display name.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(norm.NFC.String(raw))
	name = strings.Join(strings.Fields(name), " ")
	if n := utf8.RuneCountInString(name); n == 0 || n > maxUsernameLength {
		return "", ErrInvalidUsername
	}
	return name, nil
}

// CreateAnonymousPlayer registers a player with a fresh device id and an
// empty stats row.
func (s *PlayerService) CreateAnonymousPlayer(username string) (*models.Player, error) {
	name, err := NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	base := slug.Make(name)
	if base == "" {
		base = "player"
	}
	now := time.Now().UTC()
	player := models.Player{
		ID:       id,
		Username: name,
		Handle:   fmt.Sprintf("%s-%s", base, id[:6]),
		DeviceID: uuid.NewString(),
		LastSeen: &now,
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&player).Error; err != nil {
			return fmt.Errorf("create player: %w", err)
		}
		stats := models.PlayerStats{ID: uuid.NewString(), PlayerID: player.ID}
		if err := tx.Create(&stats).Error; err != nil {
			return fmt.Errorf("create stats: %w", err)
		}
		player.Stats = &stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("👤 [Players] Created %s (%s)", player.Handle, player.ID)
	return &player, nil
}

func (s *PlayerService) GetPlayer(id string) (*models.Player, error) {
	var p models.Player
	err := s.DB.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlayerByDevice resolves the device credential issued at creation.
func (s *PlayerService) GetPlayerByDevice(deviceID string) (*models.Player, error) {
	if deviceID == "" {
		return nil, ErrPlayerNotFound
	}
	var p models.Player
	err := s.DB.Where("device_id = ?", deviceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PlayerService) UpdateLastSeen(id string) error {
	res := s.DB.Model(&models.Player{}).Where("id = ?", id).Update("last_seen", time.Now().UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// GetPlayerStats returns the stats row, creating it if an older player lacks one.
func (s *PlayerService) GetPlayerStats(id string) (*models.PlayerStats, error) {
	if _, err := s.GetPlayer(id); err != nil {
		return nil, err
	}
	return ensureStats(s.DB, id)
}

// SearchPlayers matches the username or handle, case-insensitive.
func (s *PlayerService) SearchPlayers(query string, limit int) ([]models.Player, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	db := s.DB.Model(&models.Player{}).Limit(limit).Order("username ASC")
	if q := strings.TrimSpace(query); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(username) LIKE ? OR handle LIKE ?", term, term)
	}
	var players []models.Player
	if err := db.Find(&players).Error; err != nil {
		return nil, fmt.Errorf("search players: %w", err)
	}
	return players, nil
}

func ensureStats(db *gorm.DB, playerID string) (*models.PlayerStats, error) {
	var stats models.PlayerStats
	err := db.Where("player_id = ?", playerID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.PlayerStats{ID: uuid.NewString(), PlayerID: playerID}
		if err := db.Create(&stats).Error; err != nil {
			return nil, err
		}
		return &stats, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
