package sim_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"trafficsig/internal/phase"
	. "trafficsig/internal/sim"
)

func fastConfig() Config {
	cfg := Load("")
	cfg.Lights = 3
	cfg.MinCycleMS = 2
	cfg.MaxCycleMS = 4
	cfg.PollMS = 1
	return cfg
}

func newWorld(t *testing.T, cfg Config) *World {
	t.Helper()

	w, err := NewWorld(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWorld_NewLightsAreRed(t *testing.T) {
	w := newWorld(t, fastConfig())
	defer w.Shutdown()

	if n := len(w.Lights()); n != 3 {
		t.Fatalf("expected 3 lights, got %d", n)
	}

	for i, l := range w.Lights() {
		if p := l.CurrentPhase(); p != phase.Red {
			t.Fatalf("light %d starts %s", i, p)
		}
		if want := "light-" + string(rune('1'+i)); l.Name() != want {
			t.Fatalf("unexpected name: got %q, want %q", l.Name(), want)
		}
	}

	if n := len(w.Registry().Tasks()); n != 0 {
		t.Fatalf("expected no tasks before Start, got %d", n)
	}
}

func TestWorld_RunRecordsAlternatingFlips(t *testing.T) {
	cfg := fastConfig()
	w := newWorld(t, cfg)

	path := filepath.Join(t.TempDir(), "flips.csv")
	if err := w.EnableCSVLogging(path); err != nil {
		t.Fatal(err)
	}

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Shutdown(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if got := strings.Join(records[0], ","); got != "timestamp,run_id,light,seq,phase,held_ms" {
		t.Fatalf("unexpected header: %s", got)
	}
	if len(records) < 2 {
		t.Fatal("expected at least one flip to be recorded")
	}

	last := map[string]string{}
	for _, rec := range records[1:] {
		if rec[1] != w.ID().String() {
			t.Fatalf("unexpected run ID: %s", rec[1])
		}

		light, p := rec[2], rec[4]
		prev, ok := last[light]
		if !ok {
			prev = phase.Red.String()
		}
		if p == prev {
			t.Fatalf("%s flipped to %s twice in a row", light, p)
		}
		last[light] = p
	}
}

func TestWorld_StartTwiceFails(t *testing.T) {
	w := newWorld(t, fastConfig())
	defer w.Shutdown()

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); !errors.Is(err, phase.ErrAlreadySimulating) {
		t.Fatalf("expected ErrAlreadySimulating, got %v", err)
	}
	if n := len(w.Registry().Tasks()); n != 3 {
		t.Fatalf("expected one cycler per light, got %d tasks", n)
	}
}

func TestWorld_SpawnedTasksAreJoined(t *testing.T) {
	w := newWorld(t, fastConfig())

	stopped := make(chan struct{})
	if err := w.Spawn("watcher", func(ctx context.Context) error {
		defer close(stopped)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}

	if err := w.Shutdown(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-stopped:
	default:
		t.Fatal("Shutdown returned before the spawned task stopped")
	}
}

func TestWorld_LightsKeepCyclingWithoutConsumer(t *testing.T) {
	cfg := fastConfig()
	cfg.Lights = 1
	cfg.MinCycleMS = 1
	cfg.MaxCycleMS = 2
	w := newWorld(t, cfg)
	defer w.Shutdown()

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	// Nothing drains Events, so the buffer fills after 256 flips.
	const want = 400
	light := w.Lights()[0]
	deadline := time.Now().Add(10 * time.Second)

	for light.Flips() < want {
		if time.Now().After(deadline) {
			t.Fatalf("light stopped cycling at %d flips", light.Flips())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if w.DroppedEvents() == 0 {
		t.Fatal("expected flips beyond the events buffer to be dropped")
	}
	if n := len(w.Events()); n != cap(w.Events()) {
		t.Fatalf("expected the events buffer to be full, got %d of %d", n, cap(w.Events()))
	}
}

func TestWorld_ShutdownClosesCSVWithoutRun(t *testing.T) {
	w := newWorld(t, fastConfig())

	path := filepath.Join(t.TempDir(), "flips.csv")
	if err := w.EnableCSVLogging(path); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Shutdown(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "timestamp,run_id,light,seq,phase,held_ms") {
		t.Fatalf("unexpected CSV content: %q", data)
	}
}

func TestNewWorld_RejectsInvalidConfig(t *testing.T) {
	cases := map[string]Config{
		"zero value":     {},
		"no lights":      {Lights: 0, MinCycleMS: 1, MaxCycleMS: 2, PollMS: 1},
		"inverted cycle": {Lights: 1, MinCycleMS: 5, MaxCycleMS: 2, PollMS: 1},
		"zero poll":      {Lights: 1, MinCycleMS: 1, MaxCycleMS: 2, PollMS: 0},
	}

	for name, cfg := range cases {
		w, err := NewWorld(context.Background(), cfg, zaptest.NewLogger(t))
		if err == nil {
			w.Shutdown()
			t.Errorf("%s: expected an error", name)
		}
	}
}
