package client

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/nsf/termbox-go"

	"tcr-arena/internal/server"
)

const kingMaxHealth = 3000

// TermboxUI renders server stats in the terminal.
type TermboxUI struct {
	serverURL string
	latest    Update
	paused    bool
}

// NewTermboxUI creates a new TermboxUI for the server at serverURL.
func NewTermboxUI(serverURL string) *TermboxUI {
	return &TermboxUI{serverURL: serverURL}
}

// Init initializes the termbox screen.
func (ui *TermboxUI) Init() error {
	return termbox.Init()
}

// Close closes the termbox screen.
func (ui *TermboxUI) Close() {
	termbox.Close()
}

// DisplayStaticText draws text at the given coordinates. Callers flush.
func (ui *TermboxUI) DisplayStaticText(x, y int, text string, fg, bg termbox.Attribute) {
	for i, r := range []rune(text) {
		termbox.SetCell(x+i, y, r, fg, bg)
	}
}

// Render draws the latest update.
func (ui *TermboxUI) Render() {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	defer termbox.Flush()

	status := "live"
	if ui.paused {
		status = "paused"
	}
	ui.DisplayStaticText(1, 0, fmt.Sprintf("tcr-top  %s  [%s]  q/ESC quit, p pause", ui.serverURL, status), termbox.ColorWhite|termbox.AttrBold, termbox.ColorDefault)

	if ui.latest.Err != nil {
		ui.DisplayStaticText(1, 2, "error: "+ui.latest.Err.Error(), termbox.ColorRed, termbox.ColorDefault)
		return
	}
	stats := ui.latest.Stats
	if stats == nil {
		ui.DisplayStaticText(1, 2, "waiting for first update...", termbox.ColorYellow, termbox.ColorDefault)
		return
	}

	for i, line := range HeaderLines(stats) {
		ui.DisplayStaticText(1, 2+i, line, termbox.ColorCyan, termbox.ColorDefault)
	}

	y := 5
	ui.DisplayStaticText(1, y, MatchTableHeader(), termbox.ColorWhite|termbox.AttrUnderline, termbox.ColorDefault)
	for _, m := range stats.Matches {
		y++
		ui.DisplayStaticText(1, y, FormatMatch(m), termbox.ColorDefault, termbox.ColorDefault)
		ui.DisplayStaticText(1, y+1, "  side 0 "+HealthBar(m.KingHealth[0], kingMaxHealth, 20), termbox.ColorGreen, termbox.ColorDefault)
		ui.DisplayStaticText(1, y+2, "  side 1 "+HealthBar(m.KingHealth[1], kingMaxHealth, 20), termbox.ColorRed, termbox.ColorDefault)
		y += 2
	}
	if len(stats.Matches) == 0 {
		ui.DisplayStaticText(1, y+1, "no active matches", termbox.ColorYellow, termbox.ColorDefault)
	}
}

// Run renders updates until ctx is done, the update stream ends, or the user quits.
func (ui *TermboxUI) Run(ctx context.Context, updates <-chan Update) error {
	events := make(chan termbox.Event)
	quit := make(chan struct{})
	go func() {
		for {
			ev := termbox.PollEvent()
			if ev.Type == termbox.EventInterrupt {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer termbox.Interrupt()
	defer close(quit)

	ui.Render()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if !ui.paused {
				ui.latest = u
				ui.Render()
			}
		case ev := <-events:
			switch ev.Type {
			case termbox.EventKey:
				if ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q' {
					return nil
				}
				if ev.Ch == 'p' {
					ui.paused = !ui.paused
				}
				ui.Render()
			case termbox.EventResize:
				ui.Render()
			case termbox.EventError:
				return ev.Err
			}
		}
	}
}

// HeaderLines summarizes the server in two lines.
func HeaderLines(stats *server.Stats) []string {
	uptime := time.Duration(stats.UptimeSeconds * float64(time.Second)).Round(time.Second)
	first := fmt.Sprintf("uptime %s  connections %d  queued %d  matches %d",
		uptime, stats.Connections, stats.QueueLength, len(stats.Matches))

	keys := make([]string, 0, len(stats.Counters))
	for k := range stats.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats.Counters[k]))
	}
	return []string{first, strings.Join(parts, " ")}
}

// MatchTableHeader labels the columns of FormatMatch.
func MatchTableHeader() string {
	return fmt.Sprintf("%-8s %-8s %6s  %-22s %-22s %5s", "MATCH", "STATUS", "TICK", "SIDE 0", "SIDE 1", "UNITS")
}

// FormatMatch renders one match row.
func FormatMatch(m server.Summary) string {
	id := m.ID
	if len(id) > 8 {
		id = id[:8]
	}
	side := func(i int) string {
		return fmt.Sprintf("%s %4.1fe %4.0fhp", truncate(m.Players[i], 8), m.Elixir[i], m.KingHealth[i])
	}
	return fmt.Sprintf("%-8s %-8s %6d  %-22s %-22s %5d", id, m.Status, m.Tick, side(0), side(1), m.Units)
}

// HealthBar draws health as a bar of width cells.
func HealthBar(health, max float64, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	ratio := math.Min(math.Max(health/max, 0), 1)
	filled := int(math.Round(ratio * float64(width)))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
