package testutil

import (
	"testing"
	"time"
)

func TestAssertGoroutinesSettleWaitsForExit(t *testing.T) {
	baseline := Goroutines()
	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() { <-release }()
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	AssertGoroutinesSettle(t, baseline, 0, time.Second)
}
