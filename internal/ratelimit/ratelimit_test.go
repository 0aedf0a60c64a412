package ratelimit

import (
	"testing"
	"time"
)

func TestFixedWindowAllowsUpToMax(t *testing.T) {
	l := NewFixedWindowLimiter(time.Minute, 3)
	key := FollowerKey("agent-1", "follower-1")
	for i := 0; i < 3; i++ {
		if d := l.Check(key); !d.Allowed {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	d := l.Check(key)
	if d.Allowed {
		t.Fatal("fourth message in the window should be denied")
	}
	if d.Reason == "" {
		t.Error("denial should carry a reason")
	}
}

func TestFixedWindowResets(t *testing.T) {
	l := NewFixedWindowLimiter(time.Minute, 1)
	base := time.Now()
	l.now = func() time.Time { return base }
	key := FollowerKey("agent-1", "follower-1")

	l.Check(key)
	if l.Check(key).Allowed {
		t.Fatal("second message in the same window should be denied")
	}

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if !l.Check(key).Allowed {
		t.Error("a new window should allow messages again")
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := NewFixedWindowLimiter(time.Minute, 1)
	l.Check(FollowerKey("agent-1", "follower-1"))
	if !l.Check(FollowerKey("agent-1", "follower-2")).Allowed {
		t.Error("different followers must not share windows")
	}
	if !l.Check(FollowerKey("agent-2", "follower-1")).Allowed {
		t.Error("different agents must not share windows")
	}
}
