package client

import (
	"context"
	"time"

	"tcr-arena/internal/server"
)

// Update is the outcome of one poll.
type Update struct {
	Stats *server.Stats
	Err   error
	At    time.Time
}

// Watch polls the stats endpoint every interval until ctx is done. The first poll happens
// immediately. Slow consumers only ever see the newest update.
func (c *Client) Watch(ctx context.Context, interval time.Duration) <-chan Update {
	updates := make(chan Update, 1)
	go func() {
		defer close(updates)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			stats, err := c.FetchStats(ctx)
			if ctx.Err() != nil {
				return
			}
			publish(updates, Update{Stats: stats, Err: err, At: time.Now()})

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return updates
}

// publish replaces any unread update with u.
func publish(updates chan Update, u Update) {
	for {
		select {
		case updates <- u:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}
