package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is an anonymous duelist identified by a server-issued device id.
type Player struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Username string `gorm:"not null" json:"username"`
	Handle   string `gorm:"uniqueIndex;not null" json:"handle"` // slug of the username plus a short id suffix
	DeviceID string `gorm:"uniqueIndex;not null" json:"device_id"`

	LastSeen *time.Time `json:"last_seen,omitempty"`

	Stats *PlayerStats `gorm:"foreignKey:PlayerID" json:"stats,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
