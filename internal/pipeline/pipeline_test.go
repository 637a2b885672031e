// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestSourceEmitFanOut(t *testing.T) {
	src := NewSource[int]()

	var a, b atomic.Int64
	src.Subscribe("a", SinkFunc[int](func(v int) { a.Add(int64(v)) }))
	src.Subscribe("b", SinkFunc[int](func(v int) { b.Add(int64(v)) }))

	for i := 1; i <= 3; i++ {
		src.Emit(i)
	}

	if got := a.Load(); got != 6 {
		t.Errorf("a = %d, want 6", got)
	}
	if got := b.Load(); got != 6 {
		t.Errorf("b = %d, want 6", got)
	}

	src.Unsubscribe("a")
	src.Emit(10)
	if got := a.Load(); got != 6 {
		t.Errorf("a after unsubscribe = %d, want 6", got)
	}
	if got := b.Load(); got != 16 {
		t.Errorf("b after unsubscribe = %d, want 16", got)
	}
}

func TestCollectionSinkForwardsToAll(t *testing.T) {
	var mu sync.Mutex
	var order []string

	cs := NewCollectionSink[string]()
	cs.Add(SinkFunc[string](func(v string) {
		mu.Lock()
		order = append(order, "x:"+v)
		mu.Unlock()
	}))
	cs.Add(SinkFunc[string](func(v string) {
		mu.Lock()
		order = append(order, "y:"+v)
		mu.Unlock()
	}))

	cs.Submit("hit")

	if cs.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cs.Len())
	}
	if len(order) != 2 {
		t.Fatalf("expected 2 forwarded calls, got %d", len(order))
	}
}

func TestThreadedSinkProcessesInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int

	ts := NewThreadedSink[int]("test", func(_ context.Context, v int) error {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ts.Serve(ctx) }()

	for i := 0; i < 5; i++ {
		ts.Submit(i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for processing")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Errorf("got[%d] = %d, want %d", i, v, i)
		}
	}
}

func TestThreadedSinkDrainsOnShutdown(t *testing.T) {
	var processed atomic.Int64

	ts := NewThreadedSink[int]("drain", func(_ context.Context, _ int) error {
		processed.Add(1)
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 20; i++ {
		ts.Submit(i)
	}
	cancel()

	if err := ts.Serve(ctx); err == nil {
		t.Error("expected Serve to return ctx.Err() after drain")
	}

	if got := processed.Load(); got != 20 {
		t.Errorf("processed = %d, want 20 (queue must drain before exit)", got)
	}
}

func TestThreadedSinkOnError(t *testing.T) {
	var errCount atomic.Int64

	ts := NewThreadedSink[int]("errtest", func(_ context.Context, v int) error {
		if v%2 == 0 {
			return errBoom
		}
		return nil
	}, func(_ int, _ error) {
		errCount.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 6; i++ {
		ts.Submit(i)
	}
	cancel()
	_ = ts.Serve(ctx)

	if got := errCount.Load(); got != 3 {
		t.Errorf("errCount = %d, want 3", got)
	}
}
