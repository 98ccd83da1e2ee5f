package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"warungsoal-progression/models"
	"warungsoal-progression/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultSeasonLength = 90 * 24 * time.Hour

// SeasonController owns the season lifecycle: one active season at a time, and a
// transactional reset that closes it and opens the next.
type SeasonController struct {
	DB       *gorm.DB
	Clock    clockwork.Clock
	Length   time.Duration
	Archiver SeasonArchiver // optional
}

func NewSeasonController(db *gorm.DB, clock clockwork.Clock, length time.Duration, archiver SeasonArchiver) *SeasonController {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if length <= 0 {
		length = DefaultSeasonLength
	}
	return &SeasonController{DB: db, Clock: clock, Length: length, Archiver: archiver}
}

// EnsureActiveSeason opens the first season (or the one after the latest closed
// season) when none is active. Safe to call on every start.
func (c *SeasonController) EnsureActiveSeason(ctx context.Context) (*models.Season, error) {
	var out models.Season
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("is_active = ?", true).Order("season_number DESC").First(&out).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var latest int
		if err := tx.Model(&models.Season{}).Select("COALESCE(MAX(season_number), 0)").Scan(&latest).Error; err != nil {
			return err
		}

		now := c.Clock.Now().UTC()
		out = models.Season{
			SeasonNumber: latest + 1,
			StartDate:    now,
			EndDate:      now.Add(c.Length),
			IsActive:     true,
			CreatedAt:    now,
		}
		// another instance may have opened it first
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&out).Error; err != nil {
			return err
		}
		return tx.Where("is_active = ?", true).Order("season_number DESC").First(&out).Error
	})
	if err != nil {
		return nil, classifyStoreErr("ensure active season", err)
	}
	return &out, nil
}

// Current returns the active season.
func (c *SeasonController) Current(ctx context.Context) (*models.Season, error) {
	var season models.Season
	err := c.DB.WithContext(ctx).Where("is_active = ?", true).Order("season_number DESC").First(&season).Error
	if err != nil {
		return nil, classifyStoreErr("current season", err)
	}
	return &season, nil
}

// SeasonStatus is the active season with progress figures for display.
type SeasonStatus struct {
	SeasonNumber    int       `json:"season_number"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	ProgressPercent float64   `json:"progress_percent"`
	DaysRemaining   int       `json:"days_remaining"`
}

// Status describes how far through the active season we are.
func (c *SeasonController) Status(ctx context.Context) (*SeasonStatus, error) {
	season, err := c.Current(ctx)
	if err != nil {
		return nil, err
	}
	st := statusAt(*season, c.Clock.Now())
	return &st, nil
}

func statusAt(season models.Season, now time.Time) SeasonStatus {
	total := season.EndDate.Sub(season.StartDate)
	elapsed := now.Sub(season.StartDate)

	pct := 100.0
	if total > 0 {
		pct = math.Min(math.Max(float64(elapsed)/float64(total)*100, 0), 100)
	}
	days := int(math.Ceil(season.EndDate.Sub(now).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return SeasonStatus{
		SeasonNumber:    season.SeasonNumber,
		StartDate:       season.StartDate,
		EndDate:         season.EndDate,
		ProgressPercent: pct,
		DaysRemaining:   days,
	}
}

// ResetReport summarises a completed season transition.
type ResetReport struct {
	Closed     models.Season         `json:"closed"`
	Opened     models.Season         `json:"opened"`
	UsersReset int64                 `json:"users_reset"`
	Results    []models.SeasonResult `json:"-"`
	ArchiveURL string                `json:"archive_url,omitempty"`
	ArchiveErr error                 `json:"-"`
}

// ResetSeason closes the active season and opens the next one, unconditionally.
func (c *SeasonController) ResetSeason(ctx context.Context) (*ResetReport, error) {
	return c.reset(ctx, false)
}

// ResetIfExpired resets only when the active season's end date has passed.
// It returns a nil report when nothing was due.
func (c *SeasonController) ResetIfExpired(ctx context.Context) (*ResetReport, error) {
	return c.reset(ctx, true)
}

func (c *SeasonController) reset(ctx context.Context, onlyIfExpired bool) (*ResetReport, error) {
	now := c.Clock.Now().UTC()
	var report *ResetReport

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Exclusive lock: awards hold this row in share mode, so they drain first
		// and any award arriving later sees the new season.
		var active models.Season
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("is_active = ?", true).
			Order("season_number DESC").
			First(&active).Error; err != nil {
			return err
		}
		if onlyIfExpired && now.Before(active.EndDate) {
			return nil
		}
		nextNumber := active.SeasonNumber + 1

		var standings []models.UserStats
		if err := tx.Order("seasonal_exp DESC, total_exp DESC, user_id ASC").Find(&standings).Error; err != nil {
			return err
		}
		results := make([]models.SeasonResult, len(standings))
		for i, st := range standings {
			results[i] = models.SeasonResult{
				SeasonNumber: active.SeasonNumber,
				UserID:       st.UserID,
				SeasonalExp:  st.SeasonalExp,
				TrophyRank:   st.TrophyRank,
				Position:     i + 1,
				CreatedAt:    now,
			}
		}
		if len(results) > 0 {
			if err := tx.CreateInBatches(results, 500).Error; err != nil {
				return err
			}
		}

		res := tx.Model(&models.UserStats{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"seasonal_exp": 0,
				"season":       nextNumber,
				"trophy_rank":  seasonStartRankExpr(),
				"version":      gorm.Expr("version + 1"),
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Model(&models.Season{}).
			Where("season_number = ?", active.SeasonNumber).
			Updates(map[string]interface{}{"is_active": false, "closed_at": now}).Error; err != nil {
			return err
		}
		active.IsActive = false
		active.ClosedAt = &now

		opened := models.Season{
			SeasonNumber: nextNumber,
			StartDate:    now,
			EndDate:      now.Add(c.Length),
			IsActive:     true,
			CreatedAt:    now,
		}
		if err := tx.Create(&opened).Error; err != nil {
			return err
		}

		report = &ResetReport{
			Closed:     active,
			Opened:     opened,
			UsersReset: res.RowsAffected,
			Results:    results,
		}
		return nil
	})
	if err != nil {
		return nil, classifyStoreErr("reset season", err)
	}
	if report == nil {
		return nil, nil
	}

	utils.LogSuccess("🏆 [SEASON] Season %d closed, season %d open until %s (%d users reset)",
		report.Closed.SeasonNumber, report.Opened.SeasonNumber, report.Opened.EndDate.Format(time.RFC3339), report.UsersReset)

	// The reset is committed; archiving is a follow-up that can fail on its own.
	if c.Archiver != nil {
		url, err := c.Archiver.ArchiveSeason(ctx, report.Closed, report.Results)
		if err != nil {
			utils.LogError("[SEASON] archive of season %d failed: %v", report.Closed.SeasonNumber, err)
			report.ArchiveErr = err
		} else {
			report.ArchiveURL = url
		}
	}
	return report, nil
}

// SeasonStartRank is the trophy a user carries into a new season: one tier below
// where they finished, but never lower than what zero seasonal EXP classifies as.
// Demotion is a floor, not an override.
func SeasonStartRank(finished models.TrophyRank) models.TrophyRank {
	return HigherTrophy(DemoteOneTier(finished), TrophyFromSeasonalExp(0))
}

// seasonStartRankExpr applies SeasonStartRank to every row in one statement.
func seasonStartRankExpr() clause.Expr {
	var sql strings.Builder
	args := make([]interface{}, 0, 2*len(models.TrophyOrder)+1)
	sql.WriteString("CASE trophy_rank")
	for _, tier := range models.TrophyOrder {
		sql.WriteString(" WHEN ? THEN ?")
		args = append(args, string(tier), string(SeasonStartRank(tier)))
	}
	sql.WriteString(" ELSE ? END")
	args = append(args, string(models.TrophyBronze))
	return gorm.Expr(sql.String(), args...)
}

// History returns the user's final standings in closed seasons, newest first.
func (c *SeasonController) History(ctx context.Context, userID string) ([]models.SeasonResult, error) {
	var results []models.SeasonResult
	if err := c.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("season_number DESC").
		Find(&results).Error; err != nil {
		return nil, classifyStoreErr("season history", err)
	}
	return results, nil
}

// String is used in logs.
func (r *ResetReport) String() string {
	if r == nil {
		return "no reset"
	}
	return fmt.Sprintf("season %d → %d (%d users)", r.Closed.SeasonNumber, r.Opened.SeasonNumber, r.UsersReset)
}
