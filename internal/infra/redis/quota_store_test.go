package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestQuotaStoreCountsPerDevice(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	factory := QuotaFactory(newClient(mr))
	first := factory("dev-1")

	if n, err := first.Count(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty count, got %d err=%v", n, err)
	}
	for want := 1; want <= 3; want++ {
		n, err := first.IncrementAndRead(ctx)
		if err != nil || n != want {
			t.Fatalf("increment %d: got %d err=%v", want, n, err)
		}
	}
	if got, _ := mr.Get("velora_anon_count:dev-1"); got != "3" {
		t.Fatalf("expected stored counter 3, got %q", got)
	}
	if mr.TTL("velora_anon_count:dev-1") != 0 {
		t.Fatalf("quota counter must not expire")
	}

	// a second handle for the same device shares the counter
	if n, _ := factory("dev-1").Count(ctx); n != 3 {
		t.Fatalf("expected shared count 3, got %d", n)
	}
	if n, _ := factory("dev-2").Count(ctx); n != 0 {
		t.Fatalf("expected independent device, got %d", n)
	}
}

func TestQuotaStoreReportsOutage(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	store := NewQuotaStore(newClient(mr), "dev-1")
	mr.Close()

	if _, err := store.IncrementAndRead(context.Background()); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
