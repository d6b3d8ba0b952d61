// Package delay computes wait intervals between sends and the optional
// human-typing simulation pause. Stateless; safe to call from any goroutine.
package delay

import (
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Named bounded-random policies and their ranges in milliseconds.
const (
	PolicyFast   = "random-fast"   // 2-5s
	PolicyNormal = "random-normal" // 5-10s
	PolicySafe   = "random-safe"   // 10-20s
	PolicyCustom = "custom"        // caller-supplied min/max seconds
)

const (
	typingPerCharMs = 100
	typingMinMs     = 1000
	typingMaxMs     = 15000
)

// ComputeDelay returns the wait before the next send. Fixed numeric policies
// ("0", "3000", "fixed:3000") pass through unchanged; named policies draw
// uniformly from their range; unknown policies fall back to random-normal.
func ComputeDelay(policy string, customMinSeconds, customMaxSeconds int) time.Duration {
	switch policy {
	case PolicyFast:
		return randMillis(2000, 5000)
	case PolicyNormal:
		return randMillis(5000, 10000)
	case PolicySafe:
		return randMillis(10000, 20000)
	case PolicyCustom:
		min := customMinSeconds * 1000
		max := customMaxSeconds * 1000
		if min < 0 {
			min = 0
		}
		if max < min {
			max = min
		}
		return randMillis(min, max)
	}

	fixed := strings.TrimPrefix(policy, "fixed:")
	if ms, err := strconv.Atoi(fixed); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return randMillis(5000, 10000)
}

// ComputeTypingPause models a human typing a message of the given length:
// per-character cost scaled by a 0.5-1.5 random factor and clamped to
// [1s,15s], plus an independent pre-send pause that 20% of the time becomes
// a longer "thinking" pause.
func ComputeTypingPause(messageLength int) time.Duration {
	typing := float64(messageLength) * typingPerCharMs * (0.5 + rand.Float64())
	if typing < typingMinMs {
		typing = typingMinMs
	}
	if typing > typingMaxMs {
		typing = typingMaxMs
	}

	pause := randMillis(500, 3000)
	if rand.Float64() < 0.2 {
		pause = randMillis(2000, 8000)
	}

	return time.Duration(typing)*time.Millisecond + pause
}

// randMillis draws uniformly from [min, max] milliseconds.
func randMillis(min, max int) time.Duration {
	if max <= min {
		return time.Duration(min) * time.Millisecond
	}
	return time.Duration(min+rand.Intn(max-min+1)) * time.Millisecond
}
