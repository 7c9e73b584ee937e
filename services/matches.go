package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"duel-game-system/game"
	"duel-game-system/models"
	"duel-game-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ParticipantView is a seat as shown to clients. Pending actions are never
// exposed, only whether a move is in.
type ParticipantView struct {
	game.Participant
	Username  string `json:"username,omitempty"`
	Submitted bool   `json:"submitted"`
}

// MatchView is the client projection of a started room.
type MatchView struct {
	RoomID        string              `json:"room_id"`
	Code          string              `json:"code"`
	Mode          string              `json:"mode"`
	Difficulty    string              `json:"difficulty,omitempty"`
	Status        string              `json:"status"`
	Phase         game.Phase          `json:"phase"`
	Round         int                 `json:"round"`
	RoundDeadline *time.Time          `json:"round_deadline,omitempty"`
	WinThreshold  int                 `json:"win_threshold"`
	MaxBullets    int                 `json:"max_bullets"`
	Participants  []ParticipantView   `json:"participants"`
	History       []game.RoundOutcome `json:"history"`
	WinnerID      string              `json:"winner_id,omitempty"`
	AbandonedBy   string              `json:"abandoned_by,omitempty"`
}

// MoveResult is returned to the submitter. Outcome is set when the
// submission completed the round.
type MoveResult struct {
	Match   *MatchView         `json:"match"`
	Outcome *game.RoundOutcome `json:"outcome,omitempty"`
}

// Replay is the archived record of a finished match.
type Replay struct {
	Room       models.Room          `json:"room"`
	Rounds     []models.RoundResult `json:"rounds"`
	ArchivedAt time.Time            `json:"archived_at"`
}

type MatchService struct {
	DB      *gorm.DB
	Rules   game.Config
	AI      *game.Opponent
	Events  EventPublisher
	Stats   *StatsService
	Archive utils.Archiver
	Now     func() time.Time

	uploads sync.WaitGroup
}

func NewMatchService(db *gorm.DB, rules game.Config, ai *game.Opponent, events EventPublisher, stats *StatsService, archive utils.Archiver) *MatchService {
	return &MatchService{
		DB:      db,
		Rules:   rules,
		AI:      ai,
		Events:  events,
		Stats:   stats,
		Archive: archive,
		Now:     utcNow,
	}
}

// StartMachineMatch opens a single-player match: the player in seat 0 and
// the scripted opponent in seat 1. The match is in play but the round clock
// stays stopped until the player calls StartRound.
func (s *MatchService) StartMachineMatch(playerID, difficulty string) (*MatchView, error) {
	d, err := game.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	var roomID string
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := requirePlayer(tx, playerID); err != nil {
			return err
		}
		room, err := newRoom(tx, playerID, models.RoomModeMachine, d, s.Rules)
		if err != nil {
			return err
		}
		seats := []models.RoomParticipant{
			{ID: uuid.NewString(), RoomID: room.ID, PlayerID: playerID, Seat: 0, Role: string(game.RoleHuman), IsReady: true},
			{ID: uuid.NewString(), RoomID: room.ID, PlayerID: models.MachinePlayerID, Seat: 1, Role: string(game.RoleMachine), IsReady: true},
		}
		if err := tx.Create(&seats).Error; err != nil {
			return fmt.Errorf("seat machine match: %w", err)
		}
		roomID = room.ID
		return startMatch(tx, room, s.Now())
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🤖 [Match] %s started a %s match against the machine (%s)", playerID, d, roomID)
	publishAll(s.Events, Event{Type: EventMatchStarted, RoomID: roomID, Round: 1})
	return s.GetState(roomID)
}

// SubmitMove records playerID's action for round. In a machine match the
// opponent answers in the same transaction. A submission that completes the
// round resolves it.
func (s *MatchService) SubmitMove(roomID, playerID string, round int, action game.Action) (*MoveResult, error) {
	var (
		outcome   *game.RoundOutcome
		concluded bool
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, m, err := loadMatch(tx, roomID, true)
		if err != nil {
			return err
		}
		if err := m.Submit(playerID, round, action); err != nil {
			return err
		}
		if err := insertMove(tx, roomID, round, playerID, action); err != nil {
			return err
		}

		if room.Mode == models.RoomModeMachine {
			if err := s.machineMove(tx, room, m); err != nil {
				return err
			}
		}

		if m.Phase() != game.PhaseResolving {
			return tx.Model(&models.Room{}).Where("id = ?", roomID).
				Update("phase", string(m.Phase())).Error
		}
		o, err := m.Resolve(round)
		if err != nil {
			return err
		}
		outcome = &o
		concluded = m.IsFinished()
		return persistMatch(tx, room, m, &o, s.Now())
	})
	if err != nil {
		return nil, err
	}

	events := []Event{{Type: EventMoveSubmitted, RoomID: roomID, Round: round, Data: map[string]string{"player_id": playerID}}}
	if outcome != nil {
		events = append(events, Event{Type: EventRoundResolved, RoomID: roomID, Round: round, Data: outcome})
	}
	publishAll(s.Events, events...)
	if concluded {
		s.afterConclusion(roomID)
	}

	view, err := s.GetState(roomID)
	if err != nil {
		return nil, err
	}
	return &MoveResult{Match: view, Outcome: outcome}, nil
}

// StartRound arms the clock of round in a machine match. The deadline is the
// lead-in plus the decision time from now. Starting an armed round again
// changes nothing.
func (s *MatchService) StartRound(roomID, playerID string, round int) (*MatchView, error) {
	var armed bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, m, err := loadMatch(tx, roomID, true)
		if err != nil {
			return err
		}
		if !armsOnStart(room) {
			return ErrNotMachineMatch
		}
		if _, ok := m.Participant(playerID); !ok || playerID == models.MachinePlayerID {
			return &game.ParticipantNotFoundError{ParticipantID: playerID}
		}
		if m.Phase().Terminal() {
			return &game.MatchFinishedError{Phase: m.Phase()}
		}
		if round != m.Round() {
			return &game.RoundMismatchError{Got: round, Current: m.Round()}
		}
		if room.RoundStartedAt != nil {
			return nil
		}
		armed = true
		return tx.Model(&models.Room{}).Where("id = ?", roomID).
			Update("round_started_at", s.Now()).Error
	})
	if err != nil {
		return nil, err
	}
	if armed {
		publishAll(s.Events, Event{Type: EventRoundStarted, RoomID: roomID, Round: round})
	}
	return s.GetState(roomID)
}

// machineMove submits the scripted opponent's action if it has none yet.
func (s *MatchService) machineMove(tx *gorm.DB, room *models.Room, m *game.Match) error {
	if m.Phase().Terminal() || m.Submitted(models.MachinePlayerID) {
		return nil
	}
	self, ok := m.Participant(models.MachinePlayerID)
	if !ok {
		return fmt.Errorf("machine match %s has no machine seat", room.ID)
	}
	human, _ := m.Opponent(models.MachinePlayerID)
	ai := s.AI
	if ai == nil {
		ai = game.NewOpponent(nil, m.Config().MaxBullets)
	}
	action := ai.ChooseAction(game.Difficulty(room.Difficulty), game.AIState{
		OwnBullets:      self.Bullets,
		OpponentBullets: human.Bullets,
		OpponentHistory: m.ActionsOf(human.ID),
		RoundsPlayed:    len(m.History()),
	})
	if err := m.Submit(models.MachinePlayerID, m.Round(), action); err != nil {
		return fmt.Errorf("machine move rejected: %w", err)
	}
	return insertMove(tx, room.ID, m.Round(), models.MachinePlayerID, action)
}

// ResolveRound settles round once both moves are in. Calling it again for a
// settled round returns the stored outcome.
func (s *MatchService) ResolveRound(roomID string, round int) (*game.RoundOutcome, error) {
	return s.settle(roomID, round, func(m *game.Match) (game.RoundOutcome, error) {
		return m.Resolve(round)
	}, false)
}

// ExpireRound applies the timeout policy to round. The deadline is checked
// against the server clock so clients cannot end a round early.
func (s *MatchService) ExpireRound(roomID string, round int) (*game.RoundOutcome, error) {
	return s.settle(roomID, round, func(m *game.Match) (game.RoundOutcome, error) {
		return m.Expire(round)
	}, true)
}

func (s *MatchService) settle(roomID string, round int, fn func(*game.Match) (game.RoundOutcome, error), timeout bool) (*game.RoundOutcome, error) {
	var (
		outcome   game.RoundOutcome
		fresh     bool
		concluded bool
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		room, m, err := loadMatch(tx, roomID, true)
		if err != nil {
			return err
		}
		settled := len(m.History())
		if timeout && round == m.Round() && !m.Phase().Terminal() {
			// a round whose clock was never started cannot run out
			if d := roundDeadline(room); d == nil || s.Now().Before(*d) {
				return game.ErrDeadlineNotReached
			}
			// the machine always answers, so only the human can time out
			if room.Mode == models.RoomModeMachine {
				if err := s.machineMove(tx, room, m); err != nil {
					return err
				}
			}
		}
		o, err := fn(m)
		if err != nil {
			return err
		}
		outcome = o
		if len(m.History()) == settled {
			return nil
		}
		fresh = true
		concluded = m.IsFinished()
		return persistMatch(tx, room, m, &o, s.Now())
	})
	if err != nil {
		return nil, err
	}
	if fresh {
		if timeout {
			log.Printf("⏱️ [Match] Round %d of %s expired (timed out: %v)", round, roomID, outcome.TimedOut)
		}
		publishAll(s.Events, Event{Type: EventRoundResolved, RoomID: roomID, Round: round, Data: outcome})
	}
	if concluded {
		s.afterConclusion(roomID)
	}
	return &outcome, nil
}

// ExpireOverdue expires every running round whose deadline has passed.
func (s *MatchService) ExpireOverdue() (int, error) {
	var rooms []models.Room
	if err := s.DB.Where("status = ? AND round_started_at IS NOT NULL", models.RoomStatusPlaying).
		Find(&rooms).Error; err != nil {
		return 0, err
	}
	now := s.Now()
	expired := 0
	for i := range rooms {
		d := roundDeadline(&rooms[i])
		if d == nil || now.Before(*d) {
			continue
		}
		if _, err := s.ExpireRound(rooms[i].ID, rooms[i].CurrentRound); err != nil {
			if !game.IsClientError(err) {
				log.Printf("[Scheduler] Failed to expire round %d of %s: %v", rooms[i].CurrentRound, rooms[i].ID, err)
			}
			continue
		}
		expired++
	}
	return expired, nil
}

// GetState returns the client view of a started room.
func (s *MatchService) GetState(roomID string) (*MatchView, error) {
	room, m, err := loadMatch(s.DB, roomID, false)
	if err != nil {
		return nil, err
	}
	names, err := usernames(s.DB, room.Participants)
	if err != nil {
		return nil, err
	}
	return buildView(room, m, names), nil
}

func buildView(room *models.Room, m *game.Match, names map[string]string) *MatchView {
	v := &MatchView{
		RoomID:        room.ID,
		Code:          room.Code,
		Mode:          room.Mode,
		Difficulty:    room.Difficulty,
		Status:        room.Status,
		Phase:         m.Phase(),
		Round:         m.Round(),
		RoundDeadline: roundDeadline(room),
		WinThreshold:  m.Config().WinThreshold,
		MaxBullets:    m.Config().MaxBullets,
		History:       m.History(),
		AbandonedBy:   m.AbandonedBy(),
	}
	for _, p := range m.Participants() {
		v.Participants = append(v.Participants, ParticipantView{
			Participant: p,
			Username:    names[p.ID],
			Submitted:   m.Submitted(p.ID),
		})
	}
	if w, ok := m.Winner(); ok {
		v.WinnerID = w.ID
	}
	return v
}

// GetMoves lists the moves of round. A round without a result stays hidden,
// also when the match was abandoned before it resolved.
func (s *MatchService) GetMoves(roomID string, round int) ([]models.Move, error) {
	room, m, err := loadMatch(s.DB, roomID, false)
	if err != nil {
		return nil, err
	}
	if round > len(m.History()) {
		return nil, &game.RoundNotReadyError{Round: round}
	}
	var moves []models.Move
	err = s.DB.Where("room_id = ? AND round_number = ?", room.ID, round).
		Order("created_at ASC").Find(&moves).Error
	return moves, err
}

// GetHistory returns every settled round, oldest first.
func (s *MatchService) GetHistory(roomID string) ([]game.RoundOutcome, error) {
	_, m, err := loadMatch(s.DB, roomID, false)
	if err != nil {
		return nil, err
	}
	return m.History(), nil
}

// afterConclusion runs the post-match side effects outside the match
// transaction. Stats failures are retried by the conclusion worker.
func (s *MatchService) afterConclusion(roomID string) {
	var c models.MatchConclusion
	if err := s.DB.Where("room_id = ?", roomID).First(&c).Error; err == nil {
		log.Printf("🏆 [Match] %s won match %s in %d rounds", c.WinnerID, roomID, c.TotalRounds)
		publishAll(s.Events, Event{Type: EventMatchConcluded, RoomID: roomID, Data: game.MatchConcluded{
			MatchID:     roomID,
			WinnerID:    c.WinnerID,
			LoserID:     c.LoserID,
			TotalRounds: c.TotalRounds,
		}})
	}
	if s.Stats != nil {
		if _, err := s.Stats.OnMatchConcluded(roomID); err != nil {
			log.Printf("⚠️ [Match] Stats for %s deferred: %v", roomID, err)
		}
	}
	if s.Archive != nil {
		s.uploads.Add(1)
		go func() {
			defer s.uploads.Done()
			s.archiveReplay(roomID)
		}()
	}
}

// WaitUploads blocks until every replay upload started so far is done.
func (s *MatchService) WaitUploads() {
	s.uploads.Wait()
}

func (s *MatchService) archiveReplay(roomID string) {
	var replay Replay
	if err := s.DB.Preload("Participants", func(db *gorm.DB) *gorm.DB {
		return db.Order("seat ASC")
	}).Where("id = ?", roomID).First(&replay.Room).Error; err != nil {
		log.Printf("❌ [Archive] load room %s: %v", roomID, err)
		return
	}
	if err := s.DB.Where("room_id = ?", roomID).Order("round_number ASC").Find(&replay.Rounds).Error; err != nil {
		log.Printf("❌ [Archive] load rounds of %s: %v", roomID, err)
		return
	}
	replay.ArchivedAt = s.Now()
	body, err := json.Marshal(replay)
	if err != nil {
		log.Printf("❌ [Archive] encode %s: %v", roomID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	url, err := s.Archive.PutReplay(ctx, fmt.Sprintf("replays/%s.json", roomID), body)
	if err != nil {
		log.Printf("❌ [Archive] upload %s: %v", roomID, err)
		return
	}
	log.Printf("📦 [Archive] Replay of %s stored at %s", roomID, url)
}
