package fencing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLocalNextIsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if g, _ := s.Current(ctx, "a"); g != 0 {
		t.Fatalf("unseen name should be 0, got %d", g)
	}

	var wg sync.WaitGroup
	seen := make(chan uint64, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Next(ctx, "a")
			if err != nil {
				t.Error(err)
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	uniq := make(map[uint64]bool)
	for v := range seen {
		if uniq[v] {
			t.Fatalf("token %d issued twice", v)
		}
		uniq[v] = true
	}
	if g, _ := s.Current(ctx, "a"); g != 100 {
		t.Fatalf("Current=%d want 100", g)
	}
	if g, _ := s.Current(ctx, "b"); g != 0 {
		t.Fatalf("names must be independent, b=%d", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, time.Second)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Next(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	g, err := s.Current(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
}

func TestLocalCloseStopsSweeper(t *testing.T) {
	s := NewLocal(10*time.Millisecond, time.Hour)
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRedisNextAndTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedis(rdb, "app", time.Hour).CloseClient()
	t.Cleanup(func() { _ = s.Close(ctx) })

	for want := uint64(1); want <= 3; want++ {
		got, err := s.Next(ctx, "orders")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Next=%d want %d", got, want)
		}
	}
	if cur, _ := s.Current(ctx, "orders"); cur != 3 {
		t.Fatalf("Current=%d want 3", cur)
	}
	if ttl := mr.TTL("fence:app:orders"); ttl != time.Hour {
		t.Fatalf("ttl=%v want 1h", ttl)
	}

	// a second process sharing the store continues the sequence
	other := NewRedis(rdb, "app", 0)
	if got, _ := other.Next(ctx, "orders"); got != 4 {
		t.Fatalf("shared sequence broken: %d", got)
	}

	_ = mr.Set("fence:app:bad", "nope")
	if _, err := s.Current(ctx, "bad"); err == nil {
		t.Fatalf("expected parse error")
	}
}
