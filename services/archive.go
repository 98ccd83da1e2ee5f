package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"warungsoal-progression/models"

	"github.com/gosimple/slug"
)

// SeasonArchiver stores a closed season's final standings somewhere durable.
type SeasonArchiver interface {
	ArchiveSeason(ctx context.Context, season models.Season, results []models.SeasonResult) (string, error)
}

// ObjectUploader puts a blob under key and returns its public URL.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// ObjectStoreArchiver writes each closed season as a JSON document.
type ObjectStoreArchiver struct {
	Uploader ObjectUploader
	Prefix   string
}

func NewObjectStoreArchiver(uploader ObjectUploader) *ObjectStoreArchiver {
	return &ObjectStoreArchiver{Uploader: uploader, Prefix: "seasons"}
}

type seasonArchive struct {
	SeasonNumber int                   `json:"season_number"`
	StartDate    time.Time             `json:"start_date"`
	EndDate      time.Time             `json:"end_date"`
	ClosedAt     *time.Time            `json:"closed_at,omitempty"`
	Standings    []models.SeasonResult `json:"standings"`
}

// ArchiveKey is the object key for a season, e.g. "seasons/season-3-2026-01-15.json".
func (a *ObjectStoreArchiver) ArchiveKey(season models.Season) string {
	name := slug.Make(fmt.Sprintf("season %d %s", season.SeasonNumber, season.StartDate.UTC().Format("2006-01-02")))
	return a.Prefix + "/" + name + ".json"
}

func (a *ObjectStoreArchiver) ArchiveSeason(ctx context.Context, season models.Season, results []models.SeasonResult) (string, error) {
	if results == nil {
		results = []models.SeasonResult{}
	}
	body, err := json.Marshal(seasonArchive{
		SeasonNumber: season.SeasonNumber,
		StartDate:    season.StartDate,
		EndDate:      season.EndDate,
		ClosedAt:     season.ClosedAt,
		Standings:    results,
	})
	if err != nil {
		return "", fmt.Errorf("encode season %d archive: %w", season.SeasonNumber, err)
	}
	return a.Uploader.Upload(ctx, a.ArchiveKey(season), body, "application/json")
}
