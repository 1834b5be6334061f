package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	l := NewLimiter(Limits{
		StyleTransfers:    2,
		VideoGenerations:  1,
		Exports:           1,
		PromptGenerations: 1,
	})

	var inFlight, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Do(context.Background(), OpStyleTransfer, func() error {
				n := atomic.AddInt64(&inFlight, 1)
				for {
					old := atomic.LoadInt64(&peak)
					if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&inFlight, -1)
				return nil
			})
			if err != nil {
				t.Errorf("Do returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if p := atomic.LoadInt64(&peak); p > 2 {
		t.Errorf("expected at most 2 in-flight style transfers, observed %d", p)
	}
}

func TestLimiterUnknownClass(t *testing.T) {
	l := NewLimiter(Limits{StyleTransfers: 1, VideoGenerations: 1, Exports: 1, PromptGenerations: 1})

	err := l.Do(context.Background(), OpClass("bogus"), func() error { return nil })
	if err == nil {
		t.Fatal("expected error for unknown operation class")
	}
}

func TestLimiterReleasesOnPanicRecovery(t *testing.T) {
	l := NewLimiter(Limits{StyleTransfers: 1, VideoGenerations: 1, Exports: 1, PromptGenerations: 1})

	func() {
		defer func() { recover() }()
		l.Do(context.Background(), OpExport, func() error { panic("boom") })
	}()

	// capacity must be back: a second call under the same gate succeeds
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Do(ctx, OpExport, func() error { return nil }); err != nil {
		t.Fatalf("gate capacity leaked after panic: %v", err)
	}
}

func TestLimiterCancelledAdmission(t *testing.T) {
	l := NewLimiter(Limits{StyleTransfers: 1, VideoGenerations: 1, Exports: 1, PromptGenerations: 1})

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Do(context.Background(), OpExport, func() error {
			<-release
			return nil
		})
	}()

	// wait until the first task holds the gate
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, OpExport, func() error { return nil })
	if err == nil {
		t.Fatal("expected admission to fail once ctx expired")
	}

	close(release)
	<-done
}
