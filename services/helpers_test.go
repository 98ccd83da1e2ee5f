package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"warungsoal-progression/database"
	"warungsoal-progression/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seasonOneStart = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

// newTestDB returns a private in-memory database. One connection keeps
// transactions serialised the way row locks would on Postgres.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	db          *gorm.DB
	clock       *clockwork.FakeClock
	seasons     *SeasonController
	stats       *StatsStore
	profiles    *ProfileService
	progression *ProgressionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(seasonOneStart)

	f := &fixture{
		db:       db,
		clock:    clock,
		seasons:  NewSeasonController(db, clock, DefaultSeasonLength, nil),
		stats:    NewStatsStore(db, clock),
		profiles: NewProfileService(db),
	}
	f.progression = NewProgressionService(f.stats, f.profiles, RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	})

	_, err := f.seasons.EnsureActiveSeason(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) addUsers(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		name := "user " + id
		require.NoError(t, f.db.Create(&models.Profile{UserID: id, DisplayName: &name, Role: models.RoleUser}).Error)
	}
}

func (f *fixture) award(t *testing.T, userID string, action models.Action, difficulty models.Difficulty) *models.UserStats {
	t.Helper()
	st, err := f.progression.AwardExperience(context.Background(), userID, action, difficulty)
	require.NoError(t, err)
	return st
}

func (f *fixture) row(t *testing.T, userID string) models.UserStats {
	t.Helper()
	var st models.UserStats
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&st).Error)
	return st
}
