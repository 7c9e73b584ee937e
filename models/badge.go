package models

import (
	"time"
)

// BadgeType: static config, seeded from BadgeTriggers
type BadgeType struct {
	ID          string `gorm:"primaryKey" json:"id"`
	Code        string `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_WIN", "STREAK_5"
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	Rarity      string `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	// e.g., {"multiplayer_wins": 10}, {"best_streak": 5}
	Threshold map[string]int64 `gorm:"serializer:json;type:text" json:"threshold"`
	CreatedAt time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// PlayerBadge: awarded instance
type PlayerBadge struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	PlayerID    string    `gorm:"uniqueIndex:idx_player_badge;not null" json:"player_id"`
	BadgeTypeID string    `gorm:"uniqueIndex:idx_player_badge;not null" json:"badge_type_id"`
	AwardedAt   time.Time `gorm:"autoCreateTime" json:"awarded_at"`

	BadgeType *BadgeType `gorm:"foreignKey:BadgeTypeID" json:"badge,omitempty"`
}

// BadgeTriggers are the predefined badges
var BadgeTriggers = []BadgeType{
	{
		Code:        "FIRST_DUEL",
		Name:        "Primer Duelo",
		Description: "Finished your first match",
		Rarity:      "common",
		Threshold:   map[string]int64{"games_played": 1},
	},
	{
		Code:        "FIRST_WIN",
		Name:        "First Blood",
		Description: "Won a multiplayer match",
		Rarity:      "common",
		Threshold:   map[string]int64{"multiplayer_wins": 1},
	},
	{
		Code:        "STREAK_3",
		Name:        "Hot Hand",
		Description: "Won 3 multiplayer matches in a row",
		Rarity:      "rare",
		Threshold:   map[string]int64{"best_streak": 3},
	},
	{
		Code:        "STREAK_5",
		Name:        "Untouchable",
		Description: "Won 5 multiplayer matches in a row",
		Rarity:      "epic",
		Threshold:   map[string]int64{"best_streak": 5},
	},
	{
		Code:        "WINS_10",
		Name:        "Gunslinger",
		Description: "Won 10 multiplayer matches",
		Rarity:      "rare",
		Threshold:   map[string]int64{"multiplayer_wins": 10},
	},
	{
		Code:        "ROUNDS_100",
		Name:        "Veteran",
		Description: "Played 100 multiplayer rounds",
		Rarity:      "epic",
		Threshold:   map[string]int64{"total_rounds": 100},
	},
	{
		Code:        "MACHINE_SLAYER",
		Name:        "Machine Slayer",
		Description: "Beat the machine on hard",
		Rarity:      "legendary",
		Threshold:   map[string]int64{"solo_wins": 1, "hard": 1},
	},
}
