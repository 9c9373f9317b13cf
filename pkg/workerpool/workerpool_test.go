package workerpool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsJobs(t *testing.T) {
	p := New(4, 0)
	defer p.Shutdown()

	var count int64
	const n = 100
	for i := 0; i < n; i++ {
		p.Submit(func() { atomic.AddInt64(&count, 1) })
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt64(&count) != n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt64(&count); got != n {
		t.Fatalf("expected %d jobs to run, got %d", n, got)
	}
}

func TestClampSize(t *testing.T) {
	cases := map[int]int{0: DefaultSize, -1: DefaultSize, 1: MinSize, 1000: MaxSize, 10: 10}
	for in, want := range cases {
		if got := clampSize(in); got != want {
			t.Fatalf("clampSize(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestShutdownWaitsForInFlight(t *testing.T) {
	p := New(4, 0)
	var ran int32
	started := make(chan struct{})
	p.Submit(func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&ran, 1)
	})
	<-started
	p.Shutdown()
	if atomic.LoadInt32(&ran) != 1 {
		t.Fatal("expected in-flight job to complete before Shutdown returns")
	}
}

func TestSubmitAfterShutdownIsNoop(t *testing.T) {
	p := New(4, 0)
	p.Shutdown()

	done := make(chan struct{})
	go func() {
		p.Submit(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit after Shutdown should not block")
	}
}
