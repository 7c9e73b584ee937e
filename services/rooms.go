package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"duel-game-system/game"
	"duel-game-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 5
	maxRoomSeats     = 2
)

// NewRoomCode draws a code from the unambiguous alphabet. The alphabet has 32
// symbols so every random byte maps without bias.
func NewRoomCode() string {
	u := uuid.New()
	var b strings.Builder
	for i := 0; i < roomCodeLength; i++ {
		b.WriteByte(roomCodeAlphabet[int(u[i])%len(roomCodeAlphabet)])
	}
	return b.String()
}

// NormalizeRoomCode upper-cases and trims user input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type RoomService struct {
	DB     *gorm.DB
	Rules  game.Config
	Events EventPublisher
	Now    func() time.Time
}

func NewRoomService(db *gorm.DB, rules game.Config, events EventPublisher) *RoomService {
	return &RoomService{DB: db, Rules: rules, Events: events, Now: utcNow}
}

func utcNow() time.Time { return time.Now().UTC() }

// CreateRoom opens a waiting room with host in seat 0.
func (s *RoomService) CreateRoom(hostID, difficulty string) (*models.Room, error) {
	d, err := game.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	var room *models.Room
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requirePlayer(tx, hostID); err != nil {
			return err
		}
		r, err := newRoom(tx, hostID, models.RoomModeMultiplayer, d, s.Rules)
		if err != nil {
			return err
		}
		host := models.RoomParticipant{
			ID:       uuid.NewString(),
			RoomID:   r.ID,
			PlayerID: hostID,
			Seat:     0,
			Role:     string(game.RoleHost),
		}
		if err := tx.Create(&host).Error; err != nil {
			return fmt.Errorf("seat host: %w", err)
		}
		r.Participants = []models.RoomParticipant{host}
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🚪 [Rooms] %s opened room %s", hostID, room.Code)
	return room, nil
}

// JoinRoom seats playerID as guest. Codes are matched case-insensitively.
func (s *RoomService) JoinRoom(code, playerID string) (*models.Room, error) {
	code = NormalizeRoomCode(code)
	var room models.Room
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requirePlayer(tx, playerID); err != nil {
			return err
		}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		if room.Status != models.RoomStatusWaiting {
			return ErrRoomNotWaiting
		}
		parts, err := roomParticipants(tx, room.ID)
		if err != nil {
			return err
		}
		for _, p := range parts {
			if p.PlayerID == playerID {
				return ErrAlreadyInRoom
			}
		}
		if len(parts) >= maxRoomSeats {
			return ErrRoomFull
		}
		guest := models.RoomParticipant{
			ID:       uuid.NewString(),
			RoomID:   room.ID,
			PlayerID: playerID,
			Seat:     freeSeat(parts),
			Role:     string(game.RoleGuest),
		}
		if err := tx.Create(&guest).Error; err != nil {
			return fmt.Errorf("seat guest: %w", err)
		}
		room.Participants = append(parts, guest)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🚪 [Rooms] %s joined room %s", playerID, room.Code)
	return &room, nil
}

// SetReady toggles readiness. When both seats are ready the match starts at round 1.
func (s *RoomService) SetReady(roomID, playerID string, ready bool) (*models.Room, error) {
	var started bool
	var room *models.Room
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		if r.Status != models.RoomStatusWaiting {
			return ErrRoomNotWaiting
		}
		parts, err := roomParticipants(tx, roomID)
		if err != nil {
			return err
		}
		idx := -1
		for i, p := range parts {
			if p.PlayerID == playerID {
				idx = i
			}
		}
		if idx < 0 {
			return ErrNotInRoom
		}
		if err := tx.Model(&models.RoomParticipant{}).Where("id = ?", parts[idx].ID).
			Update("is_ready", ready).Error; err != nil {
			return err
		}
		parts[idx].IsReady = ready

		if len(parts) == maxRoomSeats && parts[0].IsReady && parts[1].IsReady {
			if err := startMatch(tx, r, s.Now()); err != nil {
				return err
			}
			started = true
		}
		r.Participants = parts
		room = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	if started {
		log.Printf("🔫 [Rooms] Match started in room %s", room.Code)
		publishAll(s.Events, Event{Type: EventMatchStarted, RoomID: room.ID, Round: 1})
	}
	return room, nil
}

// LeaveRoom removes playerID. A waiting room closes when its host leaves or
// it empties; a running match is abandoned.
func (s *RoomService) LeaveRoom(roomID, playerID string) error {
	var abandoned bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := lockRoom(tx, roomID)
		if err != nil {
			return err
		}
		switch r.Status {
		case models.RoomStatusWaiting:
			parts, err := roomParticipants(tx, roomID)
			if err != nil {
				return err
			}
			var leaving *models.RoomParticipant
			for i := range parts {
				if parts[i].PlayerID == playerID {
					leaving = &parts[i]
				}
			}
			if leaving == nil {
				return ErrNotInRoom
			}
			if r.HostID == playerID || len(parts) == 1 {
				return deleteRoom(tx, roomID)
			}
			return tx.Delete(&models.RoomParticipant{}, "id = ?", leaving.ID).Error
		case models.RoomStatusPlaying:
			room, m, err := loadMatch(tx, roomID, false)
			if err != nil {
				return err
			}
			if err := m.Abandon(playerID); err != nil {
				var notFound *game.ParticipantNotFoundError
				if errors.As(err, &notFound) {
					return ErrNotInRoom
				}
				return err
			}
			abandoned = true
			return persistMatch(tx, room, m, nil, s.Now())
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}
	if abandoned {
		log.Printf("🏳️ [Rooms] %s abandoned match %s", playerID, roomID)
		publishAll(s.Events, Event{Type: EventMatchAbandoned, RoomID: roomID, Data: map[string]string{"abandoned_by": playerID}})
	}
	return nil
}

func (s *RoomService) GetRoom(roomID string) (*models.Room, error) {
	return s.findRoom("id = ?", roomID)
}

func (s *RoomService) GetRoomByCode(code string) (*models.Room, error) {
	return s.findRoom("code = ?", NormalizeRoomCode(code))
}

func (s *RoomService) findRoom(query string, arg string) (*models.Room, error) {
	var room models.Room
	err := s.DB.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("seat ASC")
	}).Where(query, arg).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	names, err := usernames(s.DB, room.Participants)
	if err != nil {
		return nil, err
	}
	for i := range room.Participants {
		room.Participants[i].Username = names[room.Participants[i].PlayerID]
	}
	return &room, nil
}

// CleanupStaleRooms closes waiting rooms older than maxAge.
func (s *RoomService) CleanupStaleRooms(maxAge time.Duration) (int, error) {
	var ids []string
	cutoff := s.Now().Add(-maxAge)
	if err := s.DB.Model(&models.Room{}).
		Where("status = ? AND created_at < ?", models.RoomStatusWaiting, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	closed := 0
	for _, id := range ids {
		if err := s.DB.Transaction(func(tx *gorm.DB) error {
			return deleteRoom(tx, id)
		}); err != nil {
			log.Printf("[Scheduler] Failed to close stale room %s: %v", id, err)
			continue
		}
		closed++
	}
	return closed, nil
}

func usernames(db *gorm.DB, parts []models.RoomParticipant) (map[string]string, error) {
	names := map[string]string{}
	var ids []string
	for _, p := range parts {
		if p.PlayerID != models.MachinePlayerID {
			ids = append(ids, p.PlayerID)
		}
	}
	if len(ids) == 0 {
		return names, nil
	}
	var players []models.Player
	if err := db.Select("id", "username").Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, err
	}
	for _, p := range players {
		names[p.ID] = p.Username
	}
	return names, nil
}

func requirePlayer(tx *gorm.DB, playerID string) error {
	if playerID == "" {
		return ErrPlayerNotFound
	}
	var count int64
	if err := tx.Model(&models.Player{}).Where("id = ?", playerID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// newRoom inserts a room under a code no other room holds.
func newRoom(tx *gorm.DB, hostID, mode string, d game.Difficulty, rules game.Config) (*models.Room, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code := NewRoomCode()
		var taken int64
		if err := tx.Model(&models.Room{}).Unscoped().Where("code = ?", code).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			continue
		}
		room := &models.Room{
			ID:         uuid.NewString(),
			Code:       code,
			HostID:     hostID,
			Mode:       mode,
			Difficulty: string(d),
			Status:     models.RoomStatusWaiting,
		}
		applyRules(room, rules)
		if err := tx.Create(room).Error; err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		return room, nil
	}
	return nil, fmt.Errorf("no free room code after 10 attempts")
}

// startMatch moves a room into play at round 1 with both seats unarmed.
// Machine matches leave the round clock stopped until the player starts it.
func startMatch(tx *gorm.DB, room *models.Room, now time.Time) error {
	if err := tx.Model(&models.RoomParticipant{}).Where("room_id = ?", room.ID).
		Updates(map[string]interface{}{"bullets": 0, "rounds_won": 0}).Error; err != nil {
		return err
	}
	updates := map[string]interface{}{
		"status":           models.RoomStatusPlaying,
		"phase":            string(game.PhaseAwaitingSubmissions),
		"current_round":    1,
		"round_started_at": &now,
	}
	if armsOnStart(room) {
		updates["round_started_at"] = nil
	}
	if err := tx.Model(&models.Room{}).Where("id = ?", room.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("start match %s: %w", room.ID, err)
	}
	room.Status = models.RoomStatusPlaying
	room.Phase = string(game.PhaseAwaitingSubmissions)
	room.CurrentRound = 1
	room.RoundStartedAt, _ = updates["round_started_at"].(*time.Time)
	return nil
}

func deleteRoom(tx *gorm.DB, roomID string) error {
	if err := tx.Where("room_id = ?", roomID).Delete(&models.RoomParticipant{}).Error; err != nil {
		return err
	}
	return tx.Unscoped().Where("id = ?", roomID).Delete(&models.Room{}).Error
}

func freeSeat(parts []models.RoomParticipant) int {
	for seat := 0; seat < maxRoomSeats; seat++ {
		taken := false
		for _, p := range parts {
			if p.Seat == seat {
				taken = true
			}
		}
		if !taken {
			return seat
		}
	}
	return len(parts)
}
