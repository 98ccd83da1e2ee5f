package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"warungsoal-progression/models"
	"warungsoal-progression/utils"
)

// ProfileDirectory answers whether a user exists in the identity service.
type ProfileDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// RetryPolicy bounds internal retries of ErrConcurrencyConflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   25 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

// ProgressionService is the EXP ledger: it turns award events into stats deltas.
// It trusts callers to have checked the award is legitimate (see ValidateAward).
type ProgressionService struct {
	Stats    *StatsStore
	Profiles ProfileDirectory
	Retry    RetryPolicy
}

func NewProgressionService(stats *StatsStore, profiles ProfileDirectory, retry RetryPolicy) *ProgressionService {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryPolicy
	}
	return &ProgressionService{Stats: stats, Profiles: profiles, Retry: retry}
}

// AwardExperience grants the reward for action at difficulty to userID and
// returns the updated stats. Nothing is written unless the whole award commits.
func (s *ProgressionService) AwardExperience(ctx context.Context, userID string, action models.Action, difficulty models.Difficulty) (*models.UserStats, error) {
	xp, err := RewardFor(action, difficulty)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	var updated *models.UserStats
	err = s.withRetry(ctx, func() error {
		var applyErr error
		updated, applyErr = s.Stats.ApplyDelta(ctx, userID, xp, counterFor(action))
		return applyErr
	})
	if err != nil {
		utils.LogError("[PROGRESSION] award %s/%s to %s failed: %v", action, difficulty, userID, err)
		return nil, err
	}

	utils.LogInfo("🎮 [PROGRESSION] EXP awarded: %s +%d (%s/%s) → total=%d seasonal=%d lvl=%d trophy=%s",
		userID, xp, action, difficulty, updated.TotalExp, updated.SeasonalExp, updated.Level, updated.TrophyRank)
	return updated, nil
}

// AwardOutcome is the result of applying an award event.
type AwardOutcome struct {
	Stats *models.UserStats `json:"stats"`
	// Replayed is set when the event id had already been applied; Stats is then
	// the current row and nothing was written.
	Replayed bool `json:"replayed"`
}

// Award applies a workflow event. Events with an EventID are recorded in the award
// ledger, so a client retrying after a timeout is paid once; events without one
// behave exactly like AwardExperience.
func (s *ProgressionService) Award(ctx context.Context, ev models.AwardEvent) (*AwardOutcome, error) {
	if ev.EventID == "" {
		st, err := s.AwardExperience(ctx, ev.UserID, ev.Action, ev.Difficulty)
		if err != nil {
			return nil, err
		}
		return &AwardOutcome{Stats: st}, nil
	}

	xp, err := RewardFor(ev.Action, ev.Difficulty)
	if err != nil {
		return nil, err
	}
	if ev.QuestionID == "" || (ev.Action != models.ActionQuestionAsked && ev.AnswerID == "") {
		return nil, fmt.Errorf("%s needs question_id and, for answers, answer_id: %w", ev.Action, ErrInvalidAction)
	}
	if err := s.ensureUser(ctx, ev.UserID); err != nil {
		return nil, err
	}

	rec := models.AwardRecord{
		EventID:    ev.EventID,
		DedupeKey:  ev.DedupeKey(),
		UserID:     ev.UserID,
		Action:     ev.Action,
		Difficulty: ev.Difficulty,
		QuestionID: ev.QuestionID,
		AnswerID:   ev.AnswerID,
		ExpAwarded: xp,
	}
	var out AwardOutcome
	err = s.withRetry(ctx, func() error {
		st, replayed, applyErr := s.Stats.ApplyRecordedDelta(ctx, rec, counterFor(ev.Action))
		if applyErr != nil {
			return applyErr
		}
		out = AwardOutcome{Stats: st, Replayed: replayed}
		return nil
	})
	if err != nil {
		utils.LogError("[PROGRESSION] event %s (%s) for %s failed: %v", ev.EventID, rec.DedupeKey, ev.UserID, err)
		return nil, err
	}

	if out.Replayed {
		utils.LogWarn("[PROGRESSION] event %s replayed for %s, nothing applied", ev.EventID, ev.UserID)
	} else {
		utils.LogInfo("🎮 [PROGRESSION] event %s: %s +%d (%s) → total=%d seasonal=%d lvl=%d trophy=%s",
			ev.EventID, ev.UserID, xp, rec.DedupeKey, out.Stats.TotalExp, out.Stats.SeasonalExp, out.Stats.Level, out.Stats.TrophyRank)
	}
	return &out, nil
}

// GetStats returns the user's stats projection.
func (s *ProgressionService) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.Stats.GetStats(ctx, userID)
}

// GetLeaderboard returns the ranked projection for scope.
func (s *ProgressionService) GetLeaderboard(ctx context.Context, scope LeaderboardScope, limit int) ([]LeaderboardEntry, error) {
	return s.Stats.Leaderboard(ctx, scope, limit)
}

func (s *ProgressionService) ensureUser(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("empty user id: %w", ErrNotFound)
	}
	ok, err := s.Profiles.UserExists(ctx, userID)
	if err != nil {
		return classifyStoreErr("lookup user", err)
	}
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// withRetry re-runs fn while it reports ErrConcurrencyConflict, with exponential
// backoff and jitter, up to Retry.MaxAttempts.
func (s *ProgressionService) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := range s.Retry.MaxAttempts {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrConcurrencyConflict) {
			return err
		}
		if attempt == s.Retry.MaxAttempts-1 {
			break
		}

		wait := s.backoff(attempt)
		utils.LogWarn("[PROGRESSION] conflict on attempt %d/%d, retrying in %s: %v", attempt+1, s.Retry.MaxAttempts, wait, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

func (s *ProgressionService) backoff(attempt int) time.Duration {
	base := float64(s.Retry.BaseDelay) * math.Pow(2, float64(attempt))
	if s.Retry.MaxDelay > 0 && base > float64(s.Retry.MaxDelay) {
		base = float64(s.Retry.MaxDelay)
	}
	// ±25% jitter
	jitter := base * 0.25 * (2*rand.Float64() - 1)
	return time.Duration(base + jitter)
}
