package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"warungsoal-progression/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsStreamPump(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := NewStatsStream(f.stats, 0)
	assert.Equal(t, defaultStreamInterval, stream.Interval)

	cursor := StatsCursor{UpdatedAt: f.clock.Now()}
	f.clock.Advance(time.Second)
	_, err := f.stats.ApplyDelta(ctx, "u", 500, models.CounterQuestionsAnswered)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	next, err := stream.pump(ctx, w, cursor, "")
	require.NoError(t, err)
	assert.True(t, next.UpdatedAt.Equal(f.clock.Now()))
	assert.Equal(t, "u", next.UserID)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "event: stats\ndata: "), out)
	payload := strings.TrimSuffix(strings.TrimPrefix(out, "event: stats\ndata: "), "\n\n")

	var view StatsView
	require.NoError(t, json.Unmarshal([]byte(payload), &view))
	assert.Equal(t, "u", view.UserID)
	assert.Equal(t, models.TrophySilver, view.Trophy.Rank)
	assert.Equal(t, 3, view.LevelProgress.Level)

	// nothing new: keepalive only, cursor unchanged
	buf.Reset()
	again, err := stream.pump(ctx, w, next, "")
	require.NoError(t, err)
	assert.Equal(t, next.UserID, again.UserID)
	assert.True(t, again.UpdatedAt.Equal(next.UpdatedAt))
	assert.Equal(t, ":\n\n", buf.String())
}

func TestStatsStreamDrainsSeasonReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stream := NewStatsStream(f.stats, 0)

	const users = 150
	rows := make([]models.UserStats, users)
	for i := range rows {
		rows[i] = models.NewUserStats(fmt.Sprintf("user-%03d", i), 1)
		rows[i].CreatedAt = f.clock.Now()
		rows[i].UpdatedAt = f.clock.Now()
	}
	require.NoError(t, f.db.CreateInBatches(rows, 50).Error)

	cursor := StatsCursor{UpdatedAt: f.clock.Now(), UserID: rows[users-1].UserID}
	f.clock.Advance(time.Hour)
	report, err := f.seasons.ResetSeason(ctx)
	require.NoError(t, err)
	require.EqualValues(t, users, report.UsersReset)

	// every row now shares one updated_at, which spans more than one page
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	next, err := stream.pump(ctx, w, cursor, "")
	require.NoError(t, err)
	assert.Equal(t, users, strings.Count(buf.String(), "event: stats\n"))
	assert.Equal(t, rows[users-1].UserID, next.UserID)
	assert.True(t, next.UpdatedAt.Equal(f.clock.Now()))

	seen := map[string]bool{}
	for _, frame := range strings.Split(strings.TrimSpace(buf.String()), "\n\n") {
		var view StatsView
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "event: stats\ndata: ")), &view))
		assert.Equal(t, 2, view.Season)
		seen[view.UserID] = true
	}
	assert.Len(t, seen, users)

	buf.Reset()
	_, err = stream.pump(ctx, w, next, "")
	require.NoError(t, err)
	assert.Equal(t, ":\n\n", buf.String())
}
