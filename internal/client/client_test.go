package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tcr-arena/internal/server"
)

func newStatsServer(t *testing.T, stats server.Stats) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sampleStats() server.Stats {
	return server.Stats{
		UptimeSeconds: 65,
		Connections:   3,
		QueueLength:   1,
		Counters:      map[string]uint64{"ticks": 40, "matches_started": 1},
		Matches: []server.Summary{{
			ID:         "0123456789abcdef",
			Status:     "running",
			Tick:       40,
			Players:    [2]string{"alice", "bob"},
			Elixir:     [2]float64{7, 9.5},
			KingHealth: [2]float64{3000, 1500},
			Units:      2,
			Winner:     -1,
		}},
	}
}

func TestFetchStats(t *testing.T) {
	srv := newStatsServer(t, sampleStats())
	c := NewClient(srv.URL + "/")

	stats, err := c.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stats.Connections != 3 || len(stats.Matches) != 1 || stats.Matches[0].Players[1] != "bob" {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestFetchStatsReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	if _, err := NewClient(srv.URL).FetchStats(context.Background()); err == nil {
		t.Fatalf("expected an error for a 404")
	}
}

func TestWatchDeliversUpdates(t *testing.T) {
	srv := newStatsServer(t, sampleStats())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := NewClient(srv.URL).Watch(ctx, 10*time.Millisecond)
	select {
	case u := <-updates:
		if u.Err != nil || u.Stats == nil || u.Stats.QueueLength != 1 {
			t.Fatalf("unexpected update %+v", u)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no update received")
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("update stream not closed after cancel")
		}
	}
}

func TestFormatting(t *testing.T) {
	stats := sampleStats()

	header := HeaderLines(&stats)
	if !strings.Contains(header[0], "uptime 1m5s") || !strings.Contains(header[0], "queued 1") {
		t.Fatalf("unexpected header %q", header[0])
	}
	if header[1] != "matches_started=1 ticks=40" {
		t.Fatalf("counters should be sorted, got %q", header[1])
	}

	row := FormatMatch(stats.Matches[0])
	if !strings.HasPrefix(row, "01234567 running") || !strings.Contains(row, "alice") || !strings.Contains(row, "9.5e") {
		t.Fatalf("unexpected row %q", row)
	}

	cases := []struct {
		health float64
		want   string
	}{
		{3000, "[##########]"},
		{1500, "[#####.....]"},
		{0, "[..........]"},
		{-10, "[..........]"},
	}
	for _, tc := range cases {
		if got := HealthBar(tc.health, 3000, 10); got != tc.want {
			t.Fatalf("HealthBar(%v) = %q, want %q", tc.health, got, tc.want)
		}
	}
}
