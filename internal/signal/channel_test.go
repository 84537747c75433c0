package signal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "trafficsig/internal/signal"
	"pgregory.net/rapid"
)

func TestChannel_ReceiveReturnsLatestValue(t *testing.T) {
	ch := New[string]()
	ch.Send("red")
	ch.Send("green")
	ch.Send("red")

	got, err := ch.Receive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "red" {
		t.Fatalf("unexpected value: got %q, want %q", got, "red")
	}

	if n := ch.Len(); n != 0 {
		t.Fatalf("expected buffer to be empty after receive, got %d values", n)
	}
	if n := ch.Dropped(); n != 2 {
		t.Fatalf("unexpected drop count: got %d, want 2", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := ch.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected receive on drained channel to block until deadline, got %v", err)
	}
}

func TestChannel_ReceiveBlocksUntilSend(t *testing.T) {
	ch := New[int]()
	result := make(chan int, 1)

	go func() {
		v, err := ch.Receive(context.Background())
		if err != nil {
			t.Error(err)
		}
		result <- v
	}()

	select {
	case v := <-result:
		t.Fatalf("receive returned %d before anything was sent", v)
	case <-time.After(20 * time.Millisecond):
	}

	ch.Send(42)

	select {
	case v := <-result:
		if v != 42 {
			t.Fatalf("unexpected value: got %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not wake after send")
	}
}

func TestChannel_ReceiveHonoursCancellation(t *testing.T) {
	ch := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		_, err := ch.Receive(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not return after cancellation")
	}

	// The channel is still usable after a cancelled receive.
	ch.Send(7)
	v, err := ch.Receive(context.Background())
	if err != nil || v != 7 {
		t.Fatalf("unexpected result after cancellation: %d, %v", v, err)
	}
}

func TestChannel_RejectsSecondReceiver(t *testing.T) {
	ch := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := ch.Receive(ctx)
		first <- err
	}()

	// Give the first receiver time to park.
	time.Sleep(20 * time.Millisecond)

	probe, cancelProbe := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelProbe()

	if _, err := ch.Receive(probe); !errors.Is(err, ErrConcurrentReceive) {
		t.Fatalf("expected second receiver to be rejected, got %v", err)
	}

	ch.Send(1)

	select {
	case err := <-first:
		if err != nil {
			t.Fatalf("first receiver failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("first receiver was not woken")
	}
}

func TestChannel_Model(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var (
			ch      = New[int]()
			pending []int
			dropped uint64
		)

		t.Repeat(map[string]func(*rapid.T){
			"send a value": func(t *rapid.T) {
				v := rapid.Int().Draw(t, "value")
				ch.Send(v)
				pending = append(pending, v)
			},
			"receive": func(t *rapid.T) {
				if len(pending) == 0 {
					t.Skip("nothing buffered")
				}

				got, err := ch.Receive(context.Background())
				if err != nil {
					t.Fatal(err)
				}

				want := pending[len(pending)-1]
				if got != want {
					t.Fatalf("unexpected value: got %d, want %d", got, want)
				}

				dropped += uint64(len(pending) - 1)
				pending = nil
			},
			"": func(t *rapid.T) {
				if n := ch.Len(); n != len(pending) {
					t.Fatalf("unexpected length: got %d, want %d", n, len(pending))
				}
				if n := ch.Dropped(); n != dropped {
					t.Fatalf("unexpected drop count: got %d, want %d", n, dropped)
				}
			},
		})
	})
}
