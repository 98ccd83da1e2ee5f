package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"warungsoal-progression/database"
	"warungsoal-progression/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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

func strPtr(s string) *string { return &s }

func TestSyncOnceUpsertsProfiles(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var calls atomic.Int32
	var lastSince atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultProfileEndpoint, r.URL.Path)
		if r.Header.Get("X-Service-Token") != "svc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		lastSince.Store(r.URL.Query().Get("since"))

		resp := ProfileChangesResponse{}
		switch calls.Add(1) {
		case 1:
			resp.Profiles = []RemoteProfile{
				{ID: "u1", DisplayName: strPtr("Ana"), Role: "teacher", CreatedAt: t0, UpdatedAt: t0},
				{ID: "u2", DisplayName: strPtr("Budi"), CreatedAt: t0, UpdatedAt: t0.Add(time.Minute)},
				{ID: "", DisplayName: strPtr("broken")},
			}
		default:
			resp.Profiles = []RemoteProfile{
				{ID: "u1", DisplayName: strPtr("Ana S."), Role: "teacher", CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)},
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, nil, srv.URL, "svc", time.Minute)
	ctx := context.Background()

	n, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "0001-01-01T00:00:00Z", lastSince.Load())

	var u2 models.Profile
	require.NoError(t, db.First(&u2, "user_id = ?", "u2").Error)
	assert.Equal(t, models.RoleUser, u2.Role)

	n, err = w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, t0.Add(time.Minute).Format(time.RFC3339), lastSince.Load())

	var u1 models.Profile
	require.NoError(t, db.First(&u1, "user_id = ?", "u1").Error)
	require.NotNil(t, u1.DisplayName)
	assert.Equal(t, "Ana S.", *u1.DisplayName)
	assert.Equal(t, models.RoleTeacher, u1.Role)

	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncOnceRetriesFailedUpserts(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var failed atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_first_bad_profile", func(tx *gorm.DB) {
		if p, ok := tx.Statement.Dest.(*models.Profile); ok && p.UserID == "bad" && failed.CompareAndSwap(false, true) {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))

	var mu sync.Mutex
	var sinces []string
	sinceAt := func(i int) string {
		mu.Lock()
		defer mu.Unlock()
		require.Greater(t, len(sinces), i)
		return sinces[i]
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Query().Get("since")
		mu.Lock()
		sinces = append(sinces, since)
		mu.Unlock()

		all := []RemoteProfile{
			{ID: "newer", DisplayName: strPtr("Citra"), CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)},
			{ID: "bad", DisplayName: strPtr("Dewi"), CreatedAt: t0, UpdatedAt: t0.Add(time.Minute)},
			{ID: "old", DisplayName: strPtr("Eko"), CreatedAt: t0, UpdatedAt: t0},
		}
		cursor, err := time.Parse(time.RFC3339, since)
		assert.NoError(t, err)
		resp := ProfileChangesResponse{}
		for _, p := range all {
			if p.UpdatedAt.After(cursor) {
				resp.Profiles = append(resp.Profiles, p)
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, nil, srv.URL, "svc", time.Minute)
	ctx := context.Background()

	n, err := w.SyncOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 1, n)

	// the profile after the failure is not written, so the stored cursor stays put
	var count int64
	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", "newer").Count(&count).Error)
	assert.Zero(t, count)

	n, err = w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, t0.Format(time.RFC3339), sinceAt(1))

	for _, id := range []string{"old", "bad", "newer"} {
		var p models.Profile
		require.NoError(t, db.First(&p, "user_id = ?", id).Error, id)
	}

	// cleared once the batch succeeds
	_, err = w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour).Format(time.RFC3339), sinceAt(2))
}

func TestSyncOnceHoldsCursorBelowFailureOnTies(t *testing.T) {
	db := newTestDB(t)
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var failed atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_first_twin", func(tx *gorm.DB) {
		if p, ok := tx.Statement.Dest.(*models.Profile); ok && p.UserID == "twin-b" && failed.CompareAndSwap(false, true) {
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))

	var lastSince atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastSince.Store(r.URL.Query().Get("since"))
		// both share one updated_at; twin-a lands first and becomes the stored cursor
		_ = json.NewEncoder(w).Encode(ProfileChangesResponse{Profiles: []RemoteProfile{
			{ID: "twin-a", CreatedAt: t0, UpdatedAt: t0},
			{ID: "twin-b", CreatedAt: t0, UpdatedAt: t0},
		}})
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, nil, srv.URL, "svc", time.Minute)
	ctx := context.Background()

	_, err := w.SyncOnce(ctx)
	require.Error(t, err)

	n, err := w.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, t0.Add(-time.Second).Format(time.RFC3339), lastSince.Load())

	var p models.Profile
	require.NoError(t, db.First(&p, "user_id = ?", "twin-b").Error)
}

func TestSyncOnceReportsUpstreamErrors(t *testing.T) {
	db := newTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewProfileSyncWorker(db, nil, srv.URL, "svc", 0).SyncOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
