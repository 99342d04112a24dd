package game

import (
	"math"
	"sync"
)

// Action is a rate-limited client action class.
type Action int

const (
	ActionAttack Action = iota
	ActionPickup
	ActionPosition
)

// Per-second caps for each action class.
const (
	MaxAttacksPerSecond   = 10
	MaxPickupsPerSecond   = 20
	MaxPositionsPerSecond = 30
)

// MaxDamagePerHit is the absolute damage cap. This is the sole server
// defense against damage forgery; per-class validation is deferred.
const MaxDamagePerHit = 50000

// rateWindowMillis is the sliding window width.
const rateWindowMillis = 1000

func actionCap(a Action) int {
	switch a {
	case ActionAttack:
		return MaxAttacksPerSecond
	case ActionPickup:
		return MaxPickupsPerSecond
	case ActionPosition:
		return MaxPositionsPerSecond
	}
	return 0
}

// ActionLimiter keeps one sliding 1-second window of timestamps per
// (player, action). An action is admitted iff the window holds strictly
// fewer stamps than the cap after evicting stale ones.
type ActionLimiter struct {
	mu      sync.Mutex
	buckets map[string]*playerBuckets
}

type playerBuckets struct {
	stamps [3][]int64 // millisecond timestamps, oldest first
}

// NewActionLimiter creates an empty limiter.
func NewActionLimiter() *ActionLimiter {
	return &ActionLimiter{buckets: make(map[string]*playerBuckets)}
}

// Admit records the action at nowMs if the player is under the cap.
func (l *ActionLimiter) Admit(odID string, a Action, nowMs int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	pb, ok := l.buckets[odID]
	if !ok {
		pb = &playerBuckets{}
		l.buckets[odID] = pb
	}

	window := pb.stamps[a]
	cutoff := nowMs - rateWindowMillis

	// Evict stamps older than the window. Stamps are appended in order,
	// so the survivors are a suffix.
	keep := 0
	for keep < len(window) && window[keep] < cutoff {
		keep++
	}
	if keep > 0 {
		window = append(window[:0], window[keep:]...)
	}

	if len(window) >= actionCap(a) {
		pb.stamps[a] = window
		return false
	}

	pb.stamps[a] = append(window, nowMs)
	return true
}

// Forget drops all windows for a disconnected player.
func (l *ActionLimiter) Forget(odID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, odID)
}

// ValidateDamage clamps a client-asserted damage value. Non-finite or
// negative input yields 0. The second return reports whether the value was
// altered; a capped hit is never broadcast as a critical.
func ValidateDamage(d float64) (int, bool) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return 0, true
	}
	if d > MaxDamagePerHit {
		return MaxDamagePerHit, true
	}
	v := int(math.Floor(d))
	return v, float64(v) != d
}
