// This file implements the in-process timer scheduler and its cron sweep.
package nurture

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// FollowUpFunc delivers one follow-up message when a sequence fires.
type FollowUpFunc func(agentID, followerID string, seq SequenceType, seqCtx Context)

// timerEntry tracks one scheduled sequence.
type timerEntry struct {
	timer       *time.Timer
	scheduledAt time.Time
	expiresAt   time.Time
	seqCtx      Context
	fired       bool
}

// TimerScheduler implements Scheduler with in-process timers keyed by
// (agent, follower, sequence). A cron sweep re-fires entries whose timer
// callback was missed (e.g. clock jumps), so due follow-ups are not lost
// while the process lives.
type TimerScheduler struct {
	mu       sync.Mutex
	timers   map[string]*timerEntry
	deliver  FollowUpFunc
	cron     *cron.Cron
	sweepID  cron.EntryID
	stopOnce sync.Once
}

// NewTimerScheduler creates a scheduler delivering via fn. The sweep runs
// every 10 minutes.
func NewTimerScheduler(fn FollowUpFunc) *TimerScheduler {
	s := &TimerScheduler{
		timers:  make(map[string]*timerEntry),
		deliver: fn,
		cron:    cron.New(),
	}
	id, err := s.cron.AddFunc("@every 10m", s.sweep)
	if err != nil {
		// The literal spec is valid; this is unreachable in practice.
		slog.Error("TimerScheduler: failed to register sweep", "error", err)
	}
	s.sweepID = id
	s.cron.Start()
	return s
}

func sequenceKey(agentID, followerID string, seq SequenceType) string {
	return fmt.Sprintf("%s|%s|%s", agentID, followerID, seq)
}

// Schedule implements Scheduler.
func (s *TimerScheduler) Schedule(ctx context.Context, agentID, followerID string, seq SequenceType, delay time.Duration, seqCtx Context) error {
	key := sequenceKey(agentID, followerID, seq)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.timers[key]; exists {
		old.timer.Stop()
	}
	entry := &timerEntry{
		scheduledAt: now,
		expiresAt:   now.Add(delay),
		seqCtx:      seqCtx,
	}
	entry.timer = time.AfterFunc(delay, func() {
		s.fire(key, agentID, followerID, seq)
	})
	s.timers[key] = entry

	slog.Debug("TimerScheduler.Schedule: sequence timer set", "key", key, "delay", delay)
	return nil
}

// Cancel implements Scheduler. Cancelling a missing entry is not an error.
func (s *TimerScheduler) Cancel(ctx context.Context, agentID, followerID string, seq SequenceType) error {
	key := sequenceKey(agentID, followerID, seq)
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.timers[key]; exists {
		entry.timer.Stop()
		delete(s.timers, key)
		slog.Debug("TimerScheduler.Cancel: sequence cancelled", "key", key)
	}
	return nil
}

// fire delivers a sequence exactly once and removes its entry.
func (s *TimerScheduler) fire(key, agentID, followerID string, seq SequenceType) {
	s.mu.Lock()
	entry, exists := s.timers[key]
	if !exists || entry.fired {
		s.mu.Unlock()
		return
	}
	entry.fired = true
	seqCtx := entry.seqCtx
	delete(s.timers, key)
	s.mu.Unlock()

	slog.Info("TimerScheduler: sequence fired", "key", key, "sequence", seq)
	s.deliver(agentID, followerID, seq, seqCtx)
}

// sweep fires any entries past due whose timer callback did not run.
func (s *TimerScheduler) sweep() {
	now := time.Now()

	type due struct {
		key                 string
		agentID, followerID string
		seq                 SequenceType
	}
	var overdue []due

	s.mu.Lock()
	for key, entry := range s.timers {
		if !entry.fired && now.After(entry.expiresAt) {
			parts := strings.SplitN(key, "|", 3)
			if len(parts) != 3 {
				continue
			}
			overdue = append(overdue, due{key: key, agentID: parts[0], followerID: parts[1], seq: SequenceType(parts[2])})
		}
	}
	s.mu.Unlock()

	for _, d := range overdue {
		slog.Warn("TimerScheduler.sweep: firing overdue sequence", "key", d.key)
		s.fire(d.key, d.agentID, d.followerID, d.seq)
	}
}

// ActiveCount returns the number of live timers.
func (s *TimerScheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all timers and the sweep.
func (s *TimerScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cron.Stop()
		s.mu.Lock()
		defer s.mu.Unlock()
		for key, entry := range s.timers {
			entry.timer.Stop()
			delete(s.timers, key)
		}
		slog.Info("TimerScheduler stopped")
	})
}
