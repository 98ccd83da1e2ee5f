package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warungsoal-progression/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatsStore persists UserStats rows. All writes go through ApplyDelta
// (and the season reset); nothing else touches the derived columns.
type StatsStore struct {
	DB    *gorm.DB
	Clock clockwork.Clock
}

func NewStatsStore(db *gorm.DB, clock clockwork.Clock) *StatsStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StatsStore{DB: db, Clock: clock}
}

// GetOrCreate returns the user's row, inserting a zeroed one if absent.
// Concurrent callers race on the primary key; the loser's insert is a no-op.
func (s *StatsStore) GetOrCreate(ctx context.Context, userID string) (*models.UserStats, error) {
	var out *models.UserStats
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		season, err := activeSeasonNumber(tx)
		if err != nil {
			return err
		}
		out, err = s.getOrCreate(tx, userID, season)
		return err
	})
	if err != nil {
		return nil, classifyStoreErr("get or create stats", err)
	}
	return out, nil
}

func (s *StatsStore) getOrCreate(tx *gorm.DB, userID string, season int) (*models.UserStats, error) {
	now := s.Clock.Now().UTC()
	row := models.NewUserStats(userID, season)
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}

	var stats models.UserStats
	if err := tx.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

// ApplyDelta atomically adds delta to every EXP accumulator, recomputes level and
// trophy, bumps the optional counter and persists the row. It either commits fully
// or leaves the row untouched.
func (s *StatsStore) ApplyDelta(ctx context.Context, userID string, delta int64, counter models.CounterField) (*models.UserStats, error) {
	return s.applyDelta(ctx, userID, delta, counter, nil)
}

// errEventReplayed aborts the transaction when the event id is already in the ledger.
var errEventReplayed = errors.New("award event already applied")

// ApplyRecordedDelta is ApplyDelta guarded by the award ledger: rec is inserted in
// the same transaction as the delta. Replaying rec.EventID changes nothing and
// returns the current row with replayed set; a different event for the same
// question or answer fails with ErrDuplicateAward.
func (s *StatsStore) ApplyRecordedDelta(ctx context.Context, rec models.AwardRecord, counter models.CounterField) (stats *models.UserStats, replayed bool, err error) {
	if rec.EventID == "" || rec.DedupeKey == "" {
		return nil, false, fmt.Errorf("award record needs an event id and dedupe key: %w", ErrInvalidAction)
	}
	stats, err = s.applyDelta(ctx, rec.UserID, rec.ExpAwarded, counter, &rec)
	if errors.Is(err, errEventReplayed) {
		stats, err = s.GetStats(ctx, rec.UserID)
		return stats, true, err
	}
	return stats, false, err
}

func (s *StatsStore) applyDelta(ctx context.Context, userID string, delta int64, counter models.CounterField, rec *models.AwardRecord) (*models.UserStats, error) {
	if delta <= 0 {
		return nil, fmt.Errorf("delta must be positive, got %d: %w", delta, ErrInvalidAction)
	}
	if !counter.Valid() {
		return nil, fmt.Errorf("unknown counter %q: %w", counter, ErrInvalidAction)
	}

	var updated models.UserStats
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Share-lock the active season: a reset holds it exclusively, so an award
		// never lands half-way through a season transition.
		var season models.Season
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("is_active = ?", true).
			Order("season_number DESC").
			First(&season).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no active season visible: %w", ErrConcurrencyConflict)
		}
		if err != nil {
			return err
		}

		if rec != nil {
			rec.Season = season.SeasonNumber
			rec.CreatedAt = s.Clock.Now().UTC()
			if err := recordAward(tx, rec); err != nil {
				return err
			}
		}

		if _, err := s.getOrCreate(tx, userID, season.SeasonNumber); err != nil {
			return err
		}

		var cur models.UserStats
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&cur).Error; err != nil {
			return err
		}

		next := applyAward(cur, delta, counter, season.SeasonNumber, s.Clock.Now().UTC())

		res := tx.Model(&models.UserStats{}).
			Where("user_id = ? AND version = ?", userID, cur.Version).
			Updates(map[string]interface{}{
				"exp_points":         next.ExpPoints,
				"seasonal_exp":       next.SeasonalExp,
				"total_exp":          next.TotalExp,
				"level":              next.Level,
				"trophy_rank":        next.TrophyRank,
				"questions_asked":    next.QuestionsAsked,
				"questions_answered": next.QuestionsAnswered,
				"season":             next.Season,
				"version":            next.Version,
				"last_level_up_at":   next.LastLevelUpAt,
				"last_rank_up_at":    next.LastRankUpAt,
				"updated_at":         next.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("stats for %s changed underneath (version %d): %w", userID, cur.Version, ErrConcurrencyConflict)
		}

		updated = next
		return nil
	})
	if err != nil {
		return nil, classifyStoreErr("apply delta", err)
	}
	return &updated, nil
}

// recordAward inserts rec into the ledger. ON CONFLICT DO NOTHING covers both the
// event id and the dedupe key, so a concurrent duplicate waits for the first
// writer instead of aborting the transaction.
func recordAward(tx *gorm.DB, rec *models.AwardRecord) error {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var existing models.AwardRecord
	err := tx.Where("event_id = ?", rec.EventID).Take(&existing).Error
	switch {
	case err == nil && existing.DedupeKey == rec.DedupeKey && existing.UserID == rec.UserID:
		return errEventReplayed
	case err == nil:
		return fmt.Errorf("event %s was used for %s: %w", rec.EventID, existing.DedupeKey, ErrDuplicateAward)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", rec.DedupeKey, ErrDuplicateAward)
	}
	return err
}

// applyAward is the pure part of ApplyDelta.
// Within a season the trophy only moves up; ResetSeason is the only demotion path.
func applyAward(cur models.UserStats, delta int64, counter models.CounterField, season int, now time.Time) models.UserStats {
	next := cur
	next.ExpPoints += delta
	next.SeasonalExp += delta
	next.TotalExp += delta

	next.Level = LevelFromTotalExp(next.TotalExp)
	if next.Level > cur.Level {
		next.LastLevelUpAt = &now
	}

	next.TrophyRank = HigherTrophy(cur.TrophyRank, TrophyFromSeasonalExp(next.SeasonalExp))
	if next.TrophyRank != cur.TrophyRank {
		next.LastRankUpAt = &now
	}

	switch counter {
	case models.CounterQuestionsAsked:
		next.QuestionsAsked++
	case models.CounterQuestionsAnswered:
		next.QuestionsAnswered++
	}

	next.Season = season
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	return next
}

// GetStats is a read-only projection. A user who has never earned anything gets a
// zeroed row that is not persisted.
func (s *StatsStore) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	db := s.DB.WithContext(ctx)

	var stats models.UserStats
	err := db.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		season, err := activeSeasonNumber(db)
		if err != nil {
			return nil, classifyStoreErr("get stats", err)
		}
		zero := models.NewUserStats(userID, season)
		return &zero, nil
	}
	if err != nil {
		return nil, classifyStoreErr("get stats", err)
	}
	return &stats, nil
}

// LeaderboardScope selects the accumulator a leaderboard is ordered by.
type LeaderboardScope string

const (
	ScopeSeasonal LeaderboardScope = "seasonal"
	ScopeAllTime  LeaderboardScope = "alltime"
)

// ParseLeaderboardScope accepts "seasonal" (default on empty) and "alltime"/"all-time".
func ParseLeaderboardScope(raw string) (LeaderboardScope, bool) {
	switch raw {
	case "", "seasonal":
		return ScopeSeasonal, true
	case "alltime", "all-time":
		return ScopeAllTime, true
	}
	return "", false
}

const (
	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 100
	unknownDisplayName      = "Unknown User"
)

// LeaderboardEntry is one ranked row joined with display profile data.
type LeaderboardEntry struct {
	Rank              int               `json:"rank"`
	UserID            string            `json:"user_id"`
	DisplayName       string            `json:"display_name"`
	AvatarURL         *string           `json:"avatar_url,omitempty"`
	SeasonalExp       int64             `json:"seasonal_exp"`
	TotalExp          int64             `json:"total_exp"`
	Level             int               `json:"level"`
	QuestionsAnswered int64             `json:"questions_answered"`
	TrophyRank        models.TrophyRank `json:"trophy_rank"`
}

// Leaderboard returns the top users by seasonal or lifetime EXP.
func (s *StatsStore) Leaderboard(ctx context.Context, scope LeaderboardScope, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	order := "us.seasonal_exp DESC, us.total_exp DESC, us.user_id ASC"
	if scope == ScopeAllTime {
		order = "us.total_exp DESC, us.seasonal_exp DESC, us.user_id ASC"
	}

	type row struct {
		UserID            string
		SeasonalExp       int64
		TotalExp          int64
		Level             int
		QuestionsAnswered int64
		TrophyRank        models.TrophyRank
		DisplayName       *string
		AvatarURL         *string
	}
	var rows []row
	err := s.DB.WithContext(ctx).
		Table("user_stats AS us").
		Select("us.user_id, us.seasonal_exp, us.total_exp, us.level, us.questions_answered, us.trophy_rank, p.display_name, p.avatar_url").
		Joins("LEFT JOIN profiles p ON p.user_id = us.user_id").
		Order(order).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, classifyStoreErr("leaderboard", err)
	}

	entries := make([]LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = LeaderboardEntry{
			Rank:              i + 1,
			UserID:            r.UserID,
			DisplayName:       displayName(r.DisplayName),
			AvatarURL:         r.AvatarURL,
			SeasonalExp:       r.SeasonalExp,
			TotalExp:          r.TotalExp,
			Level:             r.Level,
			QuestionsAnswered: r.QuestionsAnswered,
			TrophyRank:        r.TrophyRank,
		}
	}
	return entries, nil
}

// StatsCursor marks a position in the (updated_at, user_id) order. A season reset
// stamps every row with one updated_at, so the user id breaks the tie.
type StatsCursor struct {
	UpdatedAt time.Time
	UserID    string
}

// ChangedSince returns up to limit rows ordered after cursor, oldest first. An
// empty userID means every user.
func (s *StatsStore) ChangedSince(ctx context.Context, cursor StatsCursor, userID string, limit int) ([]models.UserStats, error) {
	if limit <= 0 {
		limit = MaxLeaderboardLimit
	}
	at := cursor.UpdatedAt.UTC()
	q := s.DB.WithContext(ctx).
		Where("(updated_at > ? OR (updated_at = ? AND user_id > ?))", at, at, cursor.UserID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []models.UserStats
	if err := q.Order("updated_at ASC, user_id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, classifyStoreErr("changed stats", err)
	}
	return rows, nil
}

// activeSeasonNumber reads the active season without locking; 1 before any season exists.
func activeSeasonNumber(db *gorm.DB) (int, error) {
	var season models.Season
	err := db.Where("is_active = ?", true).Order("season_number DESC").First(&season).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return season.SeasonNumber, nil
}
