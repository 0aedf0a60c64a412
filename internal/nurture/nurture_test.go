package nurture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/creatoros/dmflow/internal/models"
)

// recordingScheduler captures schedule/cancel calls for assertions.
type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []SequenceType
	cancelled []SequenceType
}

func (r *recordingScheduler) Schedule(ctx context.Context, agentID, followerID string, seq SequenceType, delay time.Duration, seqCtx Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, seq)
	return nil
}

func (r *recordingScheduler) Cancel(ctx context.Context, agentID, followerID string, seq SequenceType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, seq)
	return nil
}

func TestSequenceFor(t *testing.T) {
	cases := []struct {
		intent     models.Intent
		isCustomer bool
		want       SequenceType
	}{
		{models.IntentSoftInterest, false, SequenceColdInterest},
		{models.IntentFreeOffer, false, SequenceColdInterest},
		{models.IntentObjectionPrice, false, SequencePriceObjection},
		{models.IntentObjectionLater, false, SequencePriceObjection},
		{models.IntentBooking, false, SequenceBookingReminder},
		{models.IntentSoftInterest, true, ""},
		{models.IntentGreeting, false, ""},
		{models.IntentStrongInterest, false, ""},
	}
	for _, c := range cases {
		if got := SequenceFor(c.intent, c.isCustomer); got != c.want {
			t.Errorf("SequenceFor(%s, customer=%v) = %q, want %q", c.intent, c.isCustomer, got, c.want)
		}
	}
}

func TestTriggerCancelsBeforeScheduling(t *testing.T) {
	sched := &recordingScheduler{}
	trigger := NewTrigger(sched)
	record := models.NewFollowerRecord("agent-1", "follower-1", "Ana")

	if err := trigger.Fire(context.Background(), record, models.IntentObjectionPrice); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	if len(sched.cancelled) != 1 || sched.cancelled[0] != SequencePriceObjection {
		t.Errorf("expected cancel of price_objection first, got %v", sched.cancelled)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != SequencePriceObjection {
		t.Errorf("expected price_objection scheduled, got %v", sched.scheduled)
	}
}

func TestTriggerSkipsCustomersAndNeutralIntents(t *testing.T) {
	sched := &recordingScheduler{}
	trigger := NewTrigger(sched)

	record := models.NewFollowerRecord("agent-1", "follower-1", "")
	record.IsCustomer = true
	trigger.Fire(context.Background(), record, models.IntentSoftInterest)

	record2 := models.NewFollowerRecord("agent-1", "follower-2", "")
	trigger.Fire(context.Background(), record2, models.IntentThanks)

	if len(sched.scheduled) != 0 || len(sched.cancelled) != 0 {
		t.Errorf("no scheduler calls expected, got scheduled=%v cancelled=%v", sched.scheduled, sched.cancelled)
	}
}

func TestTimerSchedulerFires(t *testing.T) {
	fired := make(chan SequenceType, 1)
	s := NewTimerScheduler(func(agentID, followerID string, seq SequenceType, seqCtx Context) {
		fired <- seq
	})
	defer s.Stop()

	err := s.Schedule(context.Background(), "agent-1", "follower-1", SequenceColdInterest, 10*time.Millisecond, Context{})
	if err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	select {
	case seq := <-fired:
		if seq != SequenceColdInterest {
			t.Errorf("expected cold_interest, got %s", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	if s.ActiveCount() != 0 {
		t.Errorf("fired timer should be removed, active=%d", s.ActiveCount())
	}
}

func TestTimerSchedulerCancel(t *testing.T) {
	fired := make(chan SequenceType, 1)
	s := NewTimerScheduler(func(agentID, followerID string, seq SequenceType, seqCtx Context) {
		fired <- seq
	})
	defer s.Stop()

	s.Schedule(context.Background(), "agent-1", "follower-1", SequenceColdInterest, 30*time.Millisecond, Context{})
	s.Cancel(context.Background(), "agent-1", "follower-1", SequenceColdInterest)

	select {
	case <-fired:
		t.Fatal("cancelled timer must not fire")
	case <-time.After(100 * time.Millisecond):
	}
	if s.ActiveCount() != 0 {
		t.Errorf("cancelled timer should be removed, active=%d", s.ActiveCount())
	}
}

func TestTimerSchedulerRescheduleReplaces(t *testing.T) {
	var mu sync.Mutex
	var count int
	s := NewTimerScheduler(func(agentID, followerID string, seq SequenceType, seqCtx Context) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer s.Stop()

	ctx := context.Background()
	s.Schedule(ctx, "agent-1", "follower-1", SequenceColdInterest, 20*time.Millisecond, Context{})
	s.Schedule(ctx, "agent-1", "follower-1", SequenceColdInterest, 20*time.Millisecond, Context{})

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("rescheduling the same sequence must replace the timer, fired %d times", count)
	}
}
