package models

import (
	"time"
)

const (
	RoomStatusWaiting   = "waiting"
	RoomStatusPlaying   = "playing"
	RoomStatusFinished  = "finished"
	RoomStatusAbandoned = "abandoned"

	RoomModeMultiplayer = "multiplayer"
	RoomModeMachine     = "machine"

	// MachinePlayerID is the participant id of the scripted opponent.
	MachinePlayerID = "machine"
)

// Room is a lobby that becomes a match once both seats are ready.
// Rule settings are snapshotted at creation so later env changes do not
// alter a running match.
type Room struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Code       string `gorm:"uniqueIndex;type:varchar(8);not null" json:"code"`
	HostID     string `gorm:"index;not null" json:"host_id"`
	Mode       string `gorm:"type:varchar(16);not null;default:'multiplayer'" json:"mode"`
	Difficulty string `gorm:"type:varchar(16)" json:"difficulty"`
	Status     string `gorm:"type:varchar(16);index;not null;default:'waiting'" json:"status"`

	// Match progress
	Phase          string     `gorm:"type:varchar(32)" json:"phase,omitempty"`
	CurrentRound   int        `json:"current_round" gorm:"default:0"`
	RoundStartedAt *time.Time `json:"round_started_at,omitempty" gorm:"index"`
	WinnerID       *string    `json:"winner_id,omitempty"`
	AbandonedBy    *string    `json:"abandoned_by,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`

	// Rules
	WinThreshold   int    `json:"win_threshold"`
	MaxBullets     int    `json:"max_bullets"`
	RoundTimeoutMs int64  `json:"round_timeout_ms"`
	RoundLeadInMs  int64  `json:"round_lead_in_ms"`
	TimeoutPolicy  string `gorm:"type:varchar(16)" json:"timeout_policy"`

	Participants []RoomParticipant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`

	Timestamps
}

// RoomParticipant occupies one of the two seats. Seat 0 is the host (or the
// human in a machine match).
type RoomParticipant struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"uniqueIndex:idx_room_player;uniqueIndex:idx_room_seat;not null" json:"room_id"`
	PlayerID  string    `gorm:"uniqueIndex:idx_room_player;not null" json:"player_id"`
	Seat      int       `gorm:"uniqueIndex:idx_room_seat;not null" json:"seat"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	IsReady   bool      `json:"is_ready" gorm:"default:false"`
	Bullets   int       `json:"bullets" gorm:"default:0"`
	RoundsWon int       `json:"rounds_won" gorm:"default:0"`
	JoinedAt  time.Time `json:"joined_at" gorm:"autoCreateTime"`

	Username string `gorm:"-" json:"username,omitempty"`
}

// Move is one submitted action. The unique index makes a second submission
// for the same slot fail at the storage layer too.
type Move struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	RoomID      string    `gorm:"uniqueIndex:idx_move_slot;not null" json:"room_id"`
	RoundNumber int       `gorm:"uniqueIndex:idx_move_slot;not null" json:"round_number"`
	PlayerID    string    `gorm:"uniqueIndex:idx_move_slot;not null" json:"player_id"`
	Action      string    `gorm:"type:varchar(16);not null" json:"action"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// RoundResult is the settled outcome of one round, written exactly once.
type RoundResult struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	RoomID       string    `gorm:"uniqueIndex:idx_result_round;not null" json:"room_id"`
	RoundNumber  int       `gorm:"uniqueIndex:idx_result_round;not null" json:"round_number"`
	HostAction   string    `gorm:"type:varchar(16)" json:"host_action"`
	GuestAction  string    `gorm:"type:varchar(16)" json:"guest_action"`
	Winner       string    `gorm:"type:varchar(8);not null" json:"winner"` // a, b or tie
	WinnerID     *string   `json:"winner_id,omitempty"`
	TimedOut     string    `json:"timed_out,omitempty"` // comma separated player ids
	HostBullets  int       `json:"host_bullets"`
	GuestBullets int       `json:"guest_bullets"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// MatchConclusion is the outbox row for a finished match. Stats consume it
// once; Processed guards against double counting.
type MatchConclusion struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	RoomID      string     `gorm:"uniqueIndex;not null" json:"room_id"`
	Mode        string     `gorm:"type:varchar(16);not null" json:"mode"`
	Difficulty  string     `gorm:"type:varchar(16)" json:"difficulty,omitempty"`
	WinnerID    string     `gorm:"not null" json:"winner_id"`
	LoserID     string     `gorm:"not null" json:"loser_id"`
	TotalRounds int        `json:"total_rounds"`
	Processed   bool       `gorm:"index;default:false" json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}
