package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"duel-game-system/game"
	"duel-game-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// rulesOf reads the rule snapshot stored on the room.
func rulesOf(room *models.Room) game.Config {
	return game.Config{
		WinThreshold:  room.WinThreshold,
		MaxBullets:    room.MaxBullets,
		RoundTimeout:  time.Duration(room.RoundTimeoutMs) * time.Millisecond,
		RoundLeadIn:   time.Duration(room.RoundLeadInMs) * time.Millisecond,
		TimeoutPolicy: game.TimeoutPolicy(room.TimeoutPolicy),
	}
}

// applyRules snapshots cfg onto a new room.
func applyRules(room *models.Room, cfg game.Config) {
	room.WinThreshold = cfg.WinThreshold
	room.MaxBullets = cfg.MaxBullets
	room.RoundTimeoutMs = cfg.RoundTimeout.Milliseconds()
	room.RoundLeadInMs = cfg.RoundLeadIn.Milliseconds()
	room.TimeoutPolicy = string(cfg.TimeoutPolicy)
}

// roundDeadline is when the current round of room expires: the lead-in plus
// the decision time after the round clock was armed. An unarmed round has no
// deadline.
func roundDeadline(room *models.Room) *time.Time {
	if room.RoundStartedAt == nil || room.Status != models.RoomStatusPlaying {
		return nil
	}
	d := room.RoundStartedAt.Add(rulesOf(room).RoundBudget())
	return &d
}

// armsOnStart reports whether rounds of room wait for the player to start
// them instead of running as soon as the previous one settles.
func armsOnStart(room *models.Room) bool {
	return room.Mode == models.RoomModeMachine
}

func lockRoom(tx *gorm.DB, roomID string) (*models.Room, error) {
	var room models.Room
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	return &room, nil
}

func roomParticipants(tx *gorm.DB, roomID string) ([]models.RoomParticipant, error) {
	var parts []models.RoomParticipant
	if err := tx.Where("room_id = ?", roomID).Order("seat ASC").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("load participants of %s: %w", roomID, err)
	}
	return parts, nil
}

// loadMatch rebuilds the match of a started room from its rows. With lock set
// the room row is held FOR UPDATE until tx ends, which serializes every
// mutation of one match.
func loadMatch(tx *gorm.DB, roomID string, lock bool) (*models.Room, *game.Match, error) {
	var room *models.Room
	if lock {
		r, err := lockRoom(tx, roomID)
		if err != nil {
			return nil, nil, err
		}
		room = r
	} else {
		var r models.Room
		err := tx.Where("id = ?", roomID).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		if err != nil {
			return nil, nil, fmt.Errorf("load room %s: %w", roomID, err)
		}
		room = &r
	}
	if room.Status == models.RoomStatusWaiting {
		return room, nil, ErrMatchNotStarted
	}

	parts, err := roomParticipants(tx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("room %s has %d participants", roomID, len(parts))
	}
	room.Participants = parts

	var moves []models.Move
	if err := tx.Where("room_id = ? AND round_number = ?", roomID, room.CurrentRound).
		Order("created_at ASC").Find(&moves).Error; err != nil {
		return nil, nil, fmt.Errorf("load moves of %s: %w", roomID, err)
	}
	var results []models.RoundResult
	if err := tx.Where("room_id = ?", roomID).Order("round_number ASC").Find(&results).Error; err != nil {
		return nil, nil, fmt.Errorf("load results of %s: %w", roomID, err)
	}

	state := game.State{
		MatchID: room.ID,
		Round:   room.CurrentRound,
	}
	switch room.Status {
	case models.RoomStatusFinished:
		state.Phase = game.PhaseFinished
	case models.RoomStatusAbandoned:
		state.Phase = game.PhaseAbandoned
	}
	if room.AbandonedBy != nil {
		state.AbandonedBy = *room.AbandonedBy
	}
	for i, p := range parts {
		state.Participants[i] = game.Participant{
			ID:        p.PlayerID,
			Role:      game.Role(p.Role),
			Bullets:   p.Bullets,
			RoundsWon: p.RoundsWon,
		}
	}
	for _, mv := range moves {
		state.Pending = append(state.Pending, game.Submission{
			ParticipantID: mv.PlayerID,
			Round:         mv.RoundNumber,
			Action:        game.Action(mv.Action),
		})
	}
	for _, r := range results {
		state.History = append(state.History, outcomeFromResult(r))
	}

	m, err := game.Restore(rulesOf(room), state)
	if err != nil {
		return nil, nil, fmt.Errorf("restore match %s: %w", roomID, err)
	}
	return room, m, nil
}

func outcomeFromResult(r models.RoundResult) game.RoundOutcome {
	o := game.RoundOutcome{
		Round:   r.RoundNumber,
		Actions: [2]game.Action{game.Action(r.HostAction), game.Action(r.GuestAction)},
		Bullets: [2]int{r.HostBullets, r.GuestBullets},
	}
	_ = o.Winner.UnmarshalText([]byte(r.Winner))
	if r.WinnerID != nil {
		o.WinnerID = *r.WinnerID
	}
	if r.TimedOut != "" {
		o.TimedOut = strings.Split(r.TimedOut, ",")
	}
	return o
}

func resultFromOutcome(roomID string, o game.RoundOutcome) models.RoundResult {
	r := models.RoundResult{
		ID:           uuid.NewString(),
		RoomID:       roomID,
		RoundNumber:  o.Round,
		HostAction:   string(o.Actions[0]),
		GuestAction:  string(o.Actions[1]),
		Winner:       o.Winner.String(),
		TimedOut:     strings.Join(o.TimedOut, ","),
		HostBullets:  o.Bullets[0],
		GuestBullets: o.Bullets[1],
	}
	if o.WinnerID != "" {
		id := o.WinnerID
		r.WinnerID = &id
	}
	return r
}

// insertMove stores a submission that the match already accepted.
func insertMove(tx *gorm.DB, roomID string, round int, playerID string, action game.Action) error {
	mv := models.Move{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		RoundNumber: round,
		PlayerID:    playerID,
		Action:      string(action),
	}
	if err := tx.Create(&mv).Error; err != nil {
		return fmt.Errorf("store move: %w", err)
	}
	return nil
}

// persistMatch writes the match projection back to the room, its seats and,
// when o is set, the round result. A finished match also gets its
// conclusion outbox row.
func persistMatch(tx *gorm.DB, room *models.Room, m *game.Match, o *game.RoundOutcome, now time.Time) error {
	if o != nil {
		res := resultFromOutcome(room.ID, *o)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "round_number"}},
			DoNothing: true,
		}).Create(&res).Error; err != nil {
			return fmt.Errorf("store round %d result: %w", o.Round, err)
		}
	}

	for seat, p := range m.Participants() {
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND seat = ?", room.ID, seat).
			Updates(map[string]interface{}{
				"bullets":    p.Bullets,
				"rounds_won": p.RoundsWon,
			}).Error; err != nil {
			return fmt.Errorf("update seat %d: %w", seat, err)
		}
	}

	updates := map[string]interface{}{
		"phase":         string(m.Phase()),
		"current_round": m.Round(),
	}
	if o != nil && !m.Phase().Terminal() {
		if armsOnStart(room) {
			updates["round_started_at"] = nil
		} else {
			updates["round_started_at"] = now
		}
	}
	switch m.Phase() {
	case game.PhaseFinished:
		updates["status"] = models.RoomStatusFinished
		updates["finished_at"] = now
		updates["round_started_at"] = nil
		if w, ok := m.Winner(); ok {
			updates["winner_id"] = w.ID
		}
	case game.PhaseAbandoned:
		updates["status"] = models.RoomStatusAbandoned
		updates["finished_at"] = now
		updates["round_started_at"] = nil
		updates["abandoned_by"] = m.AbandonedBy()
	}
	if err := tx.Model(&models.Room{}).Where("id = ?", room.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update room %s: %w", room.ID, err)
	}

	if c, ok := m.Conclusion(); ok {
		row := models.MatchConclusion{
			ID:          uuid.NewString(),
			RoomID:      room.ID,
			Mode:        room.Mode,
			Difficulty:  room.Difficulty,
			WinnerID:    c.WinnerID,
			LoserID:     c.LoserID,
			TotalRounds: c.TotalRounds,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoNothing: true,
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("store conclusion of %s: %w", room.ID, err)
		}
	}
	return nil
}
