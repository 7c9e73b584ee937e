package models

import (
	"time"
)

// PlayerStats aggregates finished matches per player (denormalized for the leaderboard).
// Multiplayer and solo (vs machine) counters are kept apart.
type PlayerStats struct {
	ID       string `gorm:"primaryKey" json:"id"`
	PlayerID string `gorm:"uniqueIndex;not null" json:"player_id"`

	// Multiplayer
	MultiplayerWins   int64 `json:"multiplayer_wins" gorm:"index;default:0"`
	MultiplayerLosses int64 `json:"multiplayer_losses" gorm:"default:0"`
	CurrentStreak     int64 `json:"current_streak" gorm:"default:0"`
	BestStreak        int64 `json:"best_streak" gorm:"default:0"`
	TotalRounds       int64 `json:"total_rounds" gorm:"default:0"`

	// Solo
	SoloWins          int64  `json:"solo_wins" gorm:"default:0"`
	SoloLosses        int64  `json:"solo_losses" gorm:"default:0"`
	SoloCurrentStreak int64  `json:"solo_current_streak" gorm:"default:0"`
	SoloBestStreak    int64  `json:"solo_best_streak" gorm:"default:0"`
	SoloRounds        int64  `json:"solo_rounds" gorm:"default:0"`
	GamesPlayed       int64  `json:"games_played" gorm:"default:0"`
	LastDifficulty    string `json:"last_difficulty,omitempty" gorm:"type:varchar(16)"`

	LastWinAt *time.Time `json:"last_win_at,omitempty"`

	Timestamps
}

func (PlayerStats) TableName() string { return "player_stats" }

// LeaderboardEntry is a read model joined from players and player_stats.
type LeaderboardEntry struct {
	Rank            int    `json:"rank" gorm:"-"`
	PlayerID        string `json:"player_id"`
	Username        string `json:"username"`
	Handle          string `json:"handle"`
	MultiplayerWins int64  `json:"multiplayer_wins"`
	BestStreak      int64  `json:"best_streak"`
	TotalRounds     int64  `json:"total_rounds"`
}
