package services

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"duel-game-system/game"
	"duel-game-system/models"
)

// roundBudget is how long a started round stays open under the default rules.
var roundBudget = game.DefaultConfig.RoundBudget()

func TestFullMatchConcludesOnce(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, guest := env.startedRoom(t)

	r1 := env.playRound(t, room.ID, 1, host.ID, game.ActionReload, guest.ID, game.ActionShield)
	if r1.Outcome.WinnerID != host.ID || r1.Outcome.Bullets != [2]int{1, 0} {
		t.Fatalf("round 1 = %+v", r1.Outcome)
	}
	r2 := env.playRound(t, room.ID, 2, host.ID, game.ActionShoot, guest.ID, game.ActionReload)
	if r2.Outcome.WinnerID != host.ID || r2.Outcome.Bullets != [2]int{0, 1} {
		t.Fatalf("round 2 = %+v", r2.Outcome)
	}
	r3 := env.playRound(t, room.ID, 3, host.ID, game.ActionReload, guest.ID, game.ActionShield)

	view := r3.Match
	if view.Phase != game.PhaseFinished || view.Status != models.RoomStatusFinished {
		t.Fatalf("phase=%s status=%s", view.Phase, view.Status)
	}
	if view.WinnerID != host.ID || len(view.History) != 3 {
		t.Errorf("winner=%s history=%d", view.WinnerID, len(view.History))
	}
	if view.RoundDeadline != nil {
		t.Errorf("finished match still has a deadline")
	}

	var c models.MatchConclusion
	if err := env.db.Where("room_id = ?", room.ID).First(&c).Error; err != nil {
		t.Fatalf("conclusion: %v", err)
	}
	if c.WinnerID != host.ID || c.LoserID != guest.ID || c.TotalRounds != 3 || !c.Processed {
		t.Errorf("conclusion = %+v", c)
	}

	hs, _ := env.players.GetPlayerStats(host.ID)
	gs, _ := env.players.GetPlayerStats(guest.ID)
	if hs.MultiplayerWins != 1 || hs.CurrentStreak != 1 || hs.TotalRounds != 3 || hs.GamesPlayed != 1 {
		t.Errorf("host stats = %+v", hs)
	}
	if gs.MultiplayerLosses != 1 || gs.CurrentStreak != 0 || gs.GamesPlayed != 1 {
		t.Errorf("guest stats = %+v", gs)
	}

	again, err := env.stats.OnMatchConcluded(room.ID)
	if err != nil || again {
		t.Errorf("second apply = %v, %v; want false, nil", again, err)
	}
	hs, _ = env.players.GetPlayerStats(host.ID)
	if hs.MultiplayerWins != 1 {
		t.Errorf("wins double counted: %d", hs.MultiplayerWins)
	}
	if env.events.count(EventMatchConcluded) != 1 || env.events.count(EventRoundResolved) != 3 {
		t.Errorf("events = %v", env.events.types())
	}

	if _, err := env.matches.SubmitMove(room.ID, host.ID, 4, game.ActionShield); !isMatchFinished(err) {
		t.Errorf("move after finish = %v", err)
	}
}

func isMatchFinished(err error) bool {
	var finished *game.MatchFinishedError
	return errors.As(err, &finished)
}

func TestSubmitMoveRejections(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, _ := env.startedRoom(t)

	var illegal *game.IllegalActionError
	if _, err := env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionShoot); !errors.As(err, &illegal) {
		t.Errorf("shoot with no ammo = %v", err)
	}
	var mismatch *game.RoundMismatchError
	if _, err := env.matches.SubmitMove(room.ID, host.ID, 2, game.ActionShield); !errors.As(err, &mismatch) {
		t.Errorf("future round = %v", err)
	}
	var notFound *game.ParticipantNotFoundError
	if _, err := env.matches.SubmitMove(room.ID, "stranger", 1, game.ActionShield); !errors.As(err, &notFound) {
		t.Errorf("stranger = %v", err)
	}

	if _, err := env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionShield); err != nil {
		t.Fatalf("first move: %v", err)
	}
	var dup *game.DuplicateSubmissionError
	if _, err := env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionReload); !errors.As(err, &dup) {
		t.Errorf("second move = %v", err)
	}

	// the rejected submissions left no rows behind
	var moves int64
	env.db.Model(&models.Move{}).Where("room_id = ?", room.ID).Count(&moves)
	if moves != 1 {
		t.Errorf("stored %d moves, want 1", moves)
	}
}

func TestPendingMovesStayHidden(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, guest := env.startedRoom(t)

	res, err := env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionReload)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != nil {
		t.Fatalf("round resolved with one move")
	}
	if res.Match.Phase != game.PhaseInProgress {
		t.Errorf("phase = %s", res.Match.Phase)
	}
	if !res.Match.Participants[0].Submitted || res.Match.Participants[1].Submitted {
		t.Errorf("submitted flags = %+v", res.Match.Participants)
	}
	body, _ := json.Marshal(res.Match)
	var raw map[string]interface{}
	json.Unmarshal(body, &raw)
	if _, ok := raw["pending"]; ok {
		t.Errorf("view exposes pending moves: %s", body)
	}

	var notReady *game.RoundNotReadyError
	if _, err := env.matches.GetMoves(room.ID, 1); !errors.As(err, &notReady) {
		t.Errorf("GetMoves of open round = %v", err)
	}
	if _, err := env.matches.ResolveRound(room.ID, 1); !errors.As(err, &notReady) {
		t.Errorf("ResolveRound with one move = %v", err)
	}

	env.playRoundGuest(t, room.ID, 1, guest.ID, game.ActionShield)
	moves, err := env.matches.GetMoves(room.ID, 1)
	if err != nil || len(moves) != 2 {
		t.Errorf("GetMoves after resolve = %d, %v", len(moves), err)
	}
}

func TestAbandonedRoundMovesStayHidden(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, guest := env.startedRoom(t)
	env.playRound(t, room.ID, 1, host.ID, game.ActionReload, guest.ID, game.ActionShield)

	if _, err := env.matches.SubmitMove(room.ID, host.ID, 2, game.ActionShoot); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.rooms.LeaveRoom(room.ID, guest.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	state, _ := env.matches.GetState(room.ID)
	if state.Phase != game.PhaseAbandoned {
		t.Fatalf("phase = %s", state.Phase)
	}

	var notReady *game.RoundNotReadyError
	if moves, err := env.matches.GetMoves(room.ID, 2); !errors.As(err, &notReady) {
		t.Errorf("GetMoves of unresolved round = %v, %v", moves, err)
	}
	if moves, err := env.matches.GetMoves(room.ID, 1); err != nil || len(moves) != 2 {
		t.Errorf("GetMoves of settled round = %d, %v", len(moves), err)
	}
}

func (e *testEnv) playRoundGuest(t *testing.T, roomID string, round int, guestID string, a game.Action) {
	t.Helper()
	res, err := e.matches.SubmitMove(roomID, guestID, round, a)
	if err != nil {
		t.Fatalf("guest move: %v", err)
	}
	if res.Outcome == nil {
		t.Fatalf("round %d did not resolve", round)
	}
}

func TestResolveRoundIsIdempotent(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, guest := env.startedRoom(t)
	first := env.playRound(t, room.ID, 1, host.ID, game.ActionReload, guest.ID, game.ActionReload)

	for i := 0; i < 2; i++ {
		o, err := env.matches.ResolveRound(room.ID, 1)
		if err != nil {
			t.Fatalf("resolve again: %v", err)
		}
		if o.Winner != first.Outcome.Winner || o.Bullets != first.Outcome.Bullets {
			t.Errorf("replayed outcome %+v differs from %+v", o, first.Outcome)
		}
	}
	var results int64
	env.db.Model(&models.RoundResult{}).Where("room_id = ?", room.ID).Count(&results)
	if results != 1 {
		t.Errorf("stored %d results, want 1", results)
	}
	if env.events.count(EventRoundResolved) != 1 {
		t.Errorf("events = %v", env.events.types())
	}

	state, _ := env.matches.GetState(room.ID)
	if state.Participants[0].Bullets != 1 || state.Participants[1].Bullets != 1 {
		t.Errorf("ammo applied twice: %+v", state.Participants)
	}
}

func TestExpireRoundHonorsServerDeadline(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	room, host, guest := env.startedRoom(t)

	if _, err := env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionShield); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.matches.ExpireRound(room.ID, 1); !errors.Is(err, game.ErrDeadlineNotReached) {
		t.Fatalf("early expire = %v", err)
	}
	// the decision time alone does not cover the lead-in
	env.clock.Advance(game.DefaultRoundTimeout + time.Second)
	if _, err := env.matches.ExpireRound(room.ID, 1); !errors.Is(err, game.ErrDeadlineNotReached) {
		t.Fatalf("expire inside lead-in = %v", err)
	}

	env.clock.Advance(game.DefaultRoundLeadIn)
	o, err := env.matches.ExpireRound(room.ID, 1)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if o.WinnerID != host.ID || len(o.TimedOut) != 1 || o.TimedOut[0] != guest.ID {
		t.Errorf("forfeit outcome = %+v", o)
	}

	state, _ := env.matches.GetState(room.ID)
	if state.Round != 2 || state.Participants[0].RoundsWon != 1 {
		t.Errorf("state after expire = round %d, %+v", state.Round, state.Participants)
	}
	if state.RoundDeadline == nil || !state.RoundDeadline.After(env.clock.Now()) {
		t.Errorf("round 2 deadline = %v", state.RoundDeadline)
	}

	again, err := env.matches.ExpireRound(room.ID, 1)
	if err != nil || again.WinnerID != host.ID {
		t.Errorf("repeat expire = %+v, %v", again, err)
	}
}

func TestExpireWithTiePolicy(t *testing.T) {
	rules := game.DefaultConfig
	rules.TimeoutPolicy = game.TimeoutTie
	env := newTestEnv(t, rules)
	room, host, _ := env.startedRoom(t)

	env.matches.SubmitMove(room.ID, host.ID, 1, game.ActionReload)
	env.clock.Advance(time.Minute)
	o, err := env.matches.ExpireRound(room.ID, 1)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if o.Winner != game.Tie || o.Bullets != [2]int{1, 0} {
		t.Errorf("tie outcome = %+v", o)
	}
}

func TestExpireOverdue(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	overdue, _, _ := env.startedRoom(t)
	env.clock.Advance(roundBudget + time.Second)
	fresh, _, _ := env.startedRoom(t)

	n, err := env.matches.ExpireOverdue()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("expired %d rounds, want 1", n)
	}
	a, _ := env.matches.GetState(overdue.ID)
	b, _ := env.matches.GetState(fresh.ID)
	if a.Round != 2 || b.Round != 1 {
		t.Errorf("rounds after sweep: overdue=%d fresh=%d", a.Round, b.Round)
	}
	// both silent under forfeit is a tie
	if h := a.History[0]; h.Winner != game.Tie || len(h.TimedOut) != 2 {
		t.Errorf("double timeout = %+v", h)
	}
}

func TestMachineMatchAnswersEveryMove(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	env.matches.AI = game.NewOpponent(rand.New(rand.NewSource(7)), game.DefaultMaxBullets)
	p := env.player(t, "Solo")

	view, err := env.matches.StartMachineMatch(p.ID, "normal")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Mode != models.RoomModeMachine || view.Participants[1].ID != models.MachinePlayerID {
		t.Fatalf("view = %+v", view)
	}

	bullets := 0
	for round := 1; round <= 30 && !view.Phase.Terminal(); round++ {
		action := game.ActionReload
		if bullets > 0 {
			action = game.ActionShoot
		}
		if bullets == game.DefaultMaxBullets {
			action = game.ActionShield
		}
		res, err := env.matches.SubmitMove(view.RoomID, p.ID, round, action)
		if err != nil {
			t.Fatalf("round %d: %v", round, err)
		}
		if res.Outcome == nil {
			t.Fatalf("machine did not answer round %d", round)
		}
		if !res.Outcome.Actions[1].Valid() {
			t.Fatalf("machine played %q", res.Outcome.Actions[1])
		}
		view = res.Match
		bullets = view.Participants[0].Bullets
	}
}

func TestMachineMatchHumanForfeitsOnTimeout(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	p := env.player(t, "Sleepy")
	view, err := env.matches.StartMachineMatch(p.ID, "easy")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	for round := 1; round <= game.DefaultWinThreshold; round++ {
		if _, err := env.matches.StartRound(view.RoomID, p.ID, round); err != nil {
			t.Fatalf("start round %d: %v", round, err)
		}
		env.clock.Advance(roundBudget + time.Second)
		o, err := env.matches.ExpireRound(view.RoomID, round)
		if err != nil {
			t.Fatalf("expire %d: %v", round, err)
		}
		if o.WinnerID != models.MachinePlayerID {
			t.Fatalf("round %d winner = %q", round, o.WinnerID)
		}
	}

	state, _ := env.matches.GetState(view.RoomID)
	if state.WinnerID != models.MachinePlayerID {
		t.Errorf("winner = %q", state.WinnerID)
	}
	stats, _ := env.players.GetPlayerStats(p.ID)
	if stats.SoloLosses != 1 || stats.MultiplayerLosses != 0 || stats.LastDifficulty != "easy" {
		t.Errorf("solo stats = %+v", stats)
	}
}

func TestIdleMachineMatchNeverExpires(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	p := env.player(t, "Idle")
	view, err := env.matches.StartMachineMatch(p.ID, "normal")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.RoundDeadline != nil {
		t.Errorf("unstarted round has deadline %v", view.RoundDeadline)
	}

	for i := 0; i < 3; i++ {
		env.clock.Advance(game.DefaultRoundTimeout)
		if n, err := env.matches.ExpireOverdue(); err != nil || n != 0 {
			t.Fatalf("sweep %d expired %d rounds, %v", i, n, err)
		}
	}
	if _, err := env.matches.ExpireRound(view.RoomID, 1); !errors.Is(err, game.ErrDeadlineNotReached) {
		t.Errorf("client timeout of unstarted round = %v", err)
	}

	state, _ := env.matches.GetState(view.RoomID)
	if state.Phase != game.PhaseAwaitingSubmissions || state.Round != 1 || len(state.History) != 0 {
		t.Errorf("idle match moved on: phase=%s round=%d", state.Phase, state.Round)
	}
	stats, _ := env.players.GetPlayerStats(p.ID)
	if stats.GamesPlayed != 0 || stats.SoloLosses != 0 {
		t.Errorf("idle player charged: %+v", stats)
	}
	if badges, _ := env.badges.PlayerBadges(p.ID); len(badges) != 0 {
		t.Errorf("idle player got %d badges", len(badges))
	}
}

func TestStartRoundArmsMachineClock(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	p := env.player(t, "Solo")
	view, err := env.matches.StartMachineMatch(p.ID, "easy")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	var mismatch *game.RoundMismatchError
	if _, err := env.matches.StartRound(view.RoomID, p.ID, 2); !errors.As(err, &mismatch) {
		t.Errorf("start of future round = %v", err)
	}
	var notFound *game.ParticipantNotFoundError
	if _, err := env.matches.StartRound(view.RoomID, models.MachinePlayerID, 1); !errors.As(err, &notFound) {
		t.Errorf("start by machine seat = %v", err)
	}

	started, err := env.matches.StartRound(view.RoomID, p.ID, 1)
	if err != nil {
		t.Fatalf("start round: %v", err)
	}
	want := env.clock.Now().Add(roundBudget)
	near := func(d *time.Time) bool { return d != nil && d.Sub(want).Abs() < time.Millisecond }
	if !near(started.RoundDeadline) {
		t.Errorf("deadline = %v, want %v", started.RoundDeadline, want)
	}
	env.clock.Advance(time.Second)
	again, err := env.matches.StartRound(view.RoomID, p.ID, 1)
	if err != nil || !near(again.RoundDeadline) {
		t.Errorf("restart moved the deadline: %v, %v", again, err)
	}
	if n := env.events.count(EventRoundStarted); n != 1 {
		t.Errorf("round_started events = %d", n)
	}

	res, err := env.matches.SubmitMove(view.RoomID, p.ID, 1, game.ActionShield)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Match.Round != 2 || res.Match.RoundDeadline != nil {
		t.Errorf("next round armed on resolve: round=%d deadline=%v", res.Match.Round, res.Match.RoundDeadline)
	}

	room, _, _ := env.startedRoom(t)
	if _, err := env.matches.StartRound(room.ID, room.HostID, 1); !errors.Is(err, ErrNotMachineMatch) {
		t.Errorf("start round of multiplayer room = %v", err)
	}
}

func TestStartMachineMatchRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	if _, err := env.matches.StartMachineMatch("ghost", "easy"); !errors.Is(err, ErrPlayerNotFound) {
		t.Errorf("unknown player = %v", err)
	}
	p := env.player(t, "Solo")
	if _, err := env.matches.StartMachineMatch(p.ID, "impossible"); !errors.Is(err, game.ErrUnknownDifficulty) {
		t.Errorf("unknown difficulty = %v", err)
	}
}

type fakeArchiver struct {
	puts chan string
	body chan []byte
}

func (a *fakeArchiver) PutReplay(_ context.Context, key string, body []byte) (string, error) {
	a.body <- body
	a.puts <- key
	return "memory://" + key, nil
}

func TestFinishedMatchIsArchived(t *testing.T) {
	env := newTestEnv(t, game.DefaultConfig)
	archive := &fakeArchiver{puts: make(chan string, 1), body: make(chan []byte, 1)}
	env.matches.Archive = archive
	room, host, guest := env.startedRoom(t)

	env.playRound(t, room.ID, 1, host.ID, game.ActionReload, guest.ID, game.ActionShield)
	env.playRound(t, room.ID, 2, host.ID, game.ActionReload, guest.ID, game.ActionShield)
	env.playRound(t, room.ID, 3, host.ID, game.ActionReload, guest.ID, game.ActionShield)
	env.matches.WaitUploads()

	select {
	case body := <-archive.body:
		key := <-archive.puts
		if key != "replays/"+room.ID+".json" {
			t.Errorf("key = %q", key)
		}
		var replay Replay
		if err := json.Unmarshal(body, &replay); err != nil {
			t.Fatalf("decode replay: %v", err)
		}
		if replay.Room.ID != room.ID || len(replay.Rounds) != 3 || len(replay.Room.Participants) != 2 {
			t.Errorf("replay = room %s, %d rounds, %d seats", replay.Room.ID, len(replay.Rounds), len(replay.Room.Participants))
		}
	default:
		t.Fatal("replay was not archived before WaitUploads returned")
	}
}
