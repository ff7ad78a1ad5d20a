package testutil

import (
	"runtime"
	"testing"
	"time"
)

const (
	defaultSettle = 5 * time.Second
	settlePoll    = 50 * time.Millisecond
	maxStackDump  = 64 << 10
)

// Goroutines collects garbage and returns the live goroutine count, for use
// as the baseline of AssertGoroutinesSettle.
func Goroutines() int {
	runtime.GC()
	return runtime.NumGoroutine()
}

// AssertGoroutinesSettle waits up to within (default 5s) for the goroutine
// count to fall to baseline+margin. On failure the stacks of every live
// goroutine are attached to the error.
func AssertGoroutinesSettle(tb testing.TB, baseline, margin int, within time.Duration) {
	tb.Helper()
	if within <= 0 {
		within = defaultSettle
	}
	deadline := time.Now().Add(within)
	current := Goroutines()
	for current > baseline+margin && time.Now().Before(deadline) {
		time.Sleep(settlePoll)
		current = Goroutines()
	}
	if current <= baseline+margin {
		return
	}
	buf := make([]byte, maxStackDump)
	n := runtime.Stack(buf, true)
	tb.Errorf("goroutines did not settle within %v: baseline=%d margin=%d current=%d\n%s",
		within, baseline, margin, current, buf[:n])
}
