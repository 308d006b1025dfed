package asyncx

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestMapPreservesOrder(t *testing.T) {
	out, err := Map(context.Background(), []int{3, 1, 2}, func(_ context.Context, n int) (string, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return strconv.Itoa(n), nil
	})
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if len(out) != 3 || out[0] != "3" || out[1] != "1" || out[2] != "2" {
		t.Fatalf("order not preserved: %v", out)
	}
}

func TestMapReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Map(context.Background(), []int{1, 2}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDoCtxSkipsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan struct{}, 1)
	DoCtx(ctx, func(context.Context) { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("fn must not run after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}
