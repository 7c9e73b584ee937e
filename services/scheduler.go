// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// SchedulerConfig sets how often the background jobs run.
type SchedulerConfig struct {
	SweepEvery     time.Duration // round timeout sweep
	CleanupEvery   time.Duration
	StaleRoomAfter time.Duration
}

var DefaultSchedulerConfig = SchedulerConfig{
	SweepEvery:     time.Second,
	CleanupEvery:   5 * time.Minute,
	StaleRoomAfter: 30 * time.Minute,
}

// StartScheduler runs the round timeout sweep and the stale room cleanup.
// The caller shuts the returned scheduler down.
func StartScheduler(matches *MatchService, rooms *RoomService, cfg SchedulerConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	// Expire rounds whose deadline passed without both moves
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.SweepEvery),
		gocron.NewTask(func() {
			n, err := matches.ExpireOverdue()
			if err != nil {
				log.Printf("[Scheduler] Timeout sweep DB error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("⏱️ [Scheduler] Expired %d overdue round(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.CleanupEvery),
		gocron.NewTask(func() {
			n, err := rooms.CleanupStaleRooms(cfg.StaleRoomAfter)
			if err != nil {
				log.Printf("[Scheduler] Stale room cleanup DB error: %v", err)
				return
			}
			if n > 0 {
				log.Printf("🧹 [Scheduler] Closed %d stale waiting room(s)", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
