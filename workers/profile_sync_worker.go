// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"warungsoal-progression/models"
	"warungsoal-progression/utils"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultProfileEndpoint = "/api/v1/public/profiles"

// RemoteProfile matches one entry of the identity sync endpoint.
type RemoteProfile struct {
	ID          string    `json:"id"`
	DisplayName *string   `json:"display_name,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Role        string    `json:"role"`
	Major       *string   `json:"major,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileChangesResponse is the top-level sync response.
type ProfileChangesResponse struct {
	Profiles []RemoteProfile `json:"profiles"`
}

// ProfileSyncWorker mirrors identity profiles into the local profiles table so
// award checks and leaderboards never call the identity service inline.
type ProfileSyncWorker struct {
	db           *gorm.DB
	clock        clockwork.Clock
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client

	// pendingSince holds the cursor back below a profile that failed to upsert.
	pendingSince time.Time
}

func NewProfileSyncWorker(db *gorm.DB, clock clockwork.Clock, baseURL, serviceToken string, interval time.Duration) *ProfileSyncWorker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		db:           db,
		clock:        clock,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: DefaultProfileEndpoint,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Start runs the sync loop in the background until ctx is cancelled.
func (w *ProfileSyncWorker) Start(ctx context.Context) {
	utils.LogInfo("🔁 [SYNC] profile sync every %s from %s", w.interval, w.baseURL)
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if _, err := w.SyncOnce(ctx); err != nil {
		utils.LogWarn("[SYNC] initial profile sync failed: %v", err)
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if _, err := w.SyncOnce(ctx); err != nil {
				utils.LogError("[SYNC] profile sync failed: %v", err)
			}
		case <-ctx.Done():
			utils.LogInfo("⏹️ [SYNC] profile sync worker stopped")
			return
		}
	}
}

// SyncOnce pulls everything changed since the newest local profile and upserts
// it oldest first. It returns how many profiles were written. An upsert failure
// stops the batch, so nothing newer than the failed profile moves the cursor,
// and the next run asks for it again.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	since, err := w.lastSyncTime(ctx)
	if err != nil {
		return 0, err
	}
	if !w.pendingSince.IsZero() && w.pendingSince.Before(since) {
		since = w.pendingSince
	}
	profiles, err := w.fetch(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(profiles) == 0 {
		w.pendingSince = time.Time{}
		return 0, nil
	}

	slices.SortStableFunc(profiles, func(a, b RemoteProfile) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	var upserted, skipped int
	for _, rp := range profiles {
		if rp.ID == "" {
			skipped++
			utils.LogWarn("[SYNC] skipping profile without id (updated %s)", rp.UpdatedAt.Format(time.RFC3339))
			continue
		}
		if err := w.upsert(ctx, rp); err != nil {
			// the query param has second precision
			w.pendingSince = rp.UpdatedAt.Add(-time.Second)
			utils.LogWarn("[SYNC] upsert profile %s failed, holding cursor at %s: %v",
				rp.ID, w.pendingSince.UTC().Format(time.RFC3339), err)
			return upserted, fmt.Errorf("upsert profile %s (%d of %d synced): %w", rp.ID, upserted, len(profiles), err)
		}
		upserted++
	}
	w.pendingSince = time.Time{}

	utils.LogSuccess("[SYNC] synced %d profile(s) (%d upserted, %d skipped)", len(profiles), upserted, skipped)
	return upserted, nil
}

// lastSyncTime is the newest updated_at already mirrored; zero means full backfill.
func (w *ProfileSyncWorker) lastSyncTime(ctx context.Context) (time.Time, error) {
	var latest models.Profile
	err := w.db.WithContext(ctx).Order("updated_at DESC").Limit(1).Take(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read sync cursor: %w", err)
	}
	return latest.UpdatedAt, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned %d: %s", resp.StatusCode, string(body))
	}

	var out ProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sync response: %w", err)
	}
	return out.Profiles, nil
}

func (w *ProfileSyncWorker) upsert(ctx context.Context, rp RemoteProfile) error {
	role := rp.Role
	if role == "" {
		role = models.RoleUser
	}
	p := models.Profile{
		UserID:      rp.ID,
		DisplayName: rp.DisplayName,
		AvatarURL:   rp.AvatarURL,
		Role:        role,
		Major:       rp.Major,
		CreatedAt:   rp.CreatedAt,
		UpdatedAt:   rp.UpdatedAt,
	}
	return w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "avatar_url", "role", "major", "updated_at"}),
	}).Create(&p).Error
}
