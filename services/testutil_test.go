package services

import (
	"sync"
	"testing"
	"time"

	"duel-game-system/game"
	"duel-game-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and serializes transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Player{},
		&models.PlayerStats{},
		&models.Room{},
		&models.RoomParticipant{},
		&models.Move{},
		&models.RoundResult{},
		&models.MatchConclusion{},
		&models.BadgeType{},
		&models.PlayerBadge{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *fakePublisher) Publish(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *fakePublisher) count(typ string) int {
	n := 0
	for _, t := range p.types() {
		if t == typ {
			n++
		}
	}
	return n
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Now().UTC()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db      *gorm.DB
	players *PlayerService
	rooms   *RoomService
	matches *MatchService
	stats   *StatsService
	badges  *BadgeService
	events  *fakePublisher
	clock   *clock
}

func newTestEnv(t *testing.T, rules game.Config) *testEnv {
	t.Helper()
	db := newTestDB(t)
	events := &fakePublisher{}
	clk := newClock()
	badges := NewBadgeService(db)
	if err := badges.SeedBadgeTypes(); err != nil {
		t.Fatalf("seed badges: %v", err)
	}
	stats := NewStatsService(db, badges)
	rooms := NewRoomService(db, rules, events)
	rooms.Now = clk.Now
	matches := NewMatchService(db, rules, nil, events, stats, nil)
	matches.Now = clk.Now
	return &testEnv{
		db:      db,
		players: NewPlayerService(db),
		rooms:   rooms,
		matches: matches,
		stats:   stats,
		badges:  badges,
		events:  events,
		clock:   clk,
	}
}

func (e *testEnv) player(t *testing.T, name string) *models.Player {
	t.Helper()
	p, err := e.players.CreateAnonymousPlayer(name)
	if err != nil {
		t.Fatalf("create player %s: %v", name, err)
	}
	return p
}

// startedRoom returns a multiplayer room in play with host in seat 0.
func (e *testEnv) startedRoom(t *testing.T) (room *models.Room, host, guest *models.Player) {
	t.Helper()
	host = e.player(t, "Host")
	guest = e.player(t, "Guest")
	r, err := e.rooms.CreateRoom(host.ID, "")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if _, err := e.rooms.JoinRoom(r.Code, guest.ID); err != nil {
		t.Fatalf("join room: %v", err)
	}
	if _, err := e.rooms.SetReady(r.ID, host.ID, true); err != nil {
		t.Fatalf("host ready: %v", err)
	}
	r, err = e.rooms.SetReady(r.ID, guest.ID, true)
	if err != nil {
		t.Fatalf("guest ready: %v", err)
	}
	return r, host, guest
}

func (e *testEnv) playRound(t *testing.T, roomID string, round int, hostID string, a game.Action, guestID string, b game.Action) *MoveResult {
	t.Helper()
	if _, err := e.matches.SubmitMove(roomID, hostID, round, a); err != nil {
		t.Fatalf("round %d host %s: %v", round, a, err)
	}
	res, err := e.matches.SubmitMove(roomID, guestID, round, b)
	if err != nil {
		t.Fatalf("round %d guest %s: %v", round, b, err)
	}
	if res.Outcome == nil {
		t.Fatalf("round %d did not resolve", round)
	}
	return res
}
