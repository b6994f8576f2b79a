package cmd

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerRejectsNonPositivePurgeInterval(t *testing.T) {
	t.Cleanup(func() {
		purgeInterval = time.Hour
		rootCmd.SetArgs(nil)
	})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)

	for _, arg := range []string{"0s", "-1m"} {
		rootCmd.SetArgs([]string{"worker", "--purge-interval=" + arg})
		err := rootCmd.ExecuteContext(context.Background())
		if err == nil || !strings.Contains(err.Error(), "--purge-interval must be positive") {
			t.Fatalf("purge-interval %s: expected validation error, got %v", arg, err)
		}
	}
}

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) Purge(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestPurgeSessionsRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	purger := &countingPurger{}
	done := make(chan struct{})
	go func() {
		purgeSessions(ctx, purger, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for purger.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected periodic purges")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("purge loop did not stop after cancel")
	}
}
