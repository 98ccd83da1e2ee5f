package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"warungsoal-progression/models"
	"warungsoal-progression/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultStreamInterval = 2 * time.Second
	streamPageSize        = MaxLeaderboardLimit
)

// StatsStream pushes user_stats changes to SSE clients by polling ChangedSince.
type StatsStream struct {
	Stats    *StatsStore
	Interval time.Duration
}

func NewStatsStream(stats *StatsStore, interval time.Duration) *StatsStream {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &StatsStream{Stats: stats, Interval: interval}
}

// Handler streams `event: stats` frames. With ?user_id= only that user's row is
// followed; without it every change is sent (live leaderboards).
func (s *StatsStream) Handler(c *fiber.Ctx) error {
	filter := c.Query("user_id")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// fiber recycles c once the handler returns; take what the writer needs now
	reqCtx := c.Context()
	cursor := StatsCursor{UpdatedAt: s.Stats.Clock.Now().UTC()}

	reqCtx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				next, err := s.pump(context.Background(), w, cursor, filter)
				if err != nil {
					utils.LogWarn("[SSE] stats stream closed (user_id=%q): %v", filter, err)
					return
				}
				cursor = next
			case <-reqCtx.Done():
				return
			}
		}
	})
	return nil
}

// pump writes every row changed after cursor and returns the new cursor. It pages
// until a short page so a reset touching many rows is drained in one tick.
// A flush error means the client went away.
func (s *StatsStream) pump(ctx context.Context, w *bufio.Writer, cursor StatsCursor, userID string) (StatsCursor, error) {
	sent := 0
	for {
		rows, err := s.Stats.ChangedSince(ctx, cursor, userID, streamPageSize)
		if err != nil {
			utils.LogWarn("[SSE] query failed: %v", err)
			break
		}
		for _, row := range rows {
			if err := writeStatsEvent(w, row); err != nil {
				return cursor, err
			}
			cursor = StatsCursor{UpdatedAt: row.UpdatedAt, UserID: row.UserID}
		}
		sent += len(rows)
		if len(rows) < streamPageSize {
			break
		}
	}

	if sent == 0 {
		// keepalive
		if _, err := w.WriteString(":\n\n"); err != nil {
			return cursor, err
		}
	}
	return cursor, w.Flush()
}

func writeStatsEvent(w *bufio.Writer, row models.UserStats) error {
	payload, err := json.Marshal(NewStatsView(row))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: stats\ndata: %s\n\n", payload)
	return err
}
