package api

import (
	"time"

	"github.com/clipforge/clipforge/internal/jobs"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type RenameProjectRequest struct {
	FileName string `json:"file_name"`
}

type DeleteSceneRequest struct {
	ProjectID    string `json:"project_id"`
	SceneID      string `json:"scene_id"`
	Retranscribe bool   `json:"retranscribe"`
}

type AddSceneRequest struct {
	ProjectID    string  `json:"project_id"`
	InsertTime   float64 `json:"insert_time"`
	Retranscribe bool    `json:"retranscribe"`
}

type AddStockSceneRequest struct {
	ProjectID      string  `json:"project_id"`
	Query          string  `json:"query"`
	InsertTime     float64 `json:"insert_time"`
	TargetDuration float64 `json:"target_duration"`
	Retranscribe   bool    `json:"retranscribe"`
}

type StockSearchRequest struct {
	Query          string  `json:"query"`
	TargetDuration float64 `json:"target_duration"`
	Count          int     `json:"count"`
}

type AnalyzeSceneRequest struct {
	ProjectID string `json:"project_id"`
	SceneID   string `json:"scene_id"`
}

type AnalyzeSceneResponse struct {
	Query string `json:"query"`
}

type PreviewSceneRequest struct {
	ProjectID string `json:"project_id"`
	SceneID   string `json:"scene_id"`
	Query     string `json:"query"`
	Count     int    `json:"count"`
}

type ReplaceSceneRequest struct {
	ProjectID    string `json:"project_id"`
	SceneID      string `json:"scene_id"`
	Query        string `json:"query"`
	Retranscribe bool   `json:"retranscribe"`
}

type ProcessBackgroundRequest struct {
	ProjectID string `json:"project_id"`
	SceneID   string `json:"scene_id"`
	Kind      string `json:"kind"`
	Value     string `json:"value"`
}

type MergeBackgroundRequest struct {
	ProjectID string `json:"project_id"`
	JobID     string `json:"job_id"`
}

type JobResponse struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	SceneID         string    `json:"scene_id"`
	BackgroundKind  string    `json:"background_kind"`
	BackgroundValue string    `json:"background_value"`
	SceneStart      float64   `json:"scene_start"`
	SceneEnd        float64   `json:"scene_end"`
	CreatedAt       time.Time `json:"created_at"`
}

func JobToResponse(j *jobs.Job) JobResponse {
	return JobResponse{
		ID:              j.ID,
		ProjectID:       j.ProjectID,
		SceneID:         j.SceneID,
		BackgroundKind:  j.BackgroundKind,
		BackgroundValue: j.BackgroundValue,
		SceneStart:      j.SceneStart,
		SceneEnd:        j.SceneEnd,
		CreatedAt:       j.CreatedAt,
	}
}

type ImproveCaptionRequest struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

type ImproveCaptionResponse struct {
	Text string `json:"text"`
}

type CaptionStylesResponse struct {
	Styles []string `json:"styles"`
}

type ExportRequest struct {
	ProjectID    string `json:"project_id"`
	Resolution   string `json:"resolution,omitempty"` // "original", "1080p", "720p"
	BurnCaptions bool   `json:"burn_captions,omitempty"`
	IncludeSRT   bool   `json:"include_srt,omitempty"`
}

type ExportResponse struct {
	Path   string `json:"path"`
	URL    string `json:"url"`
	SRTURL string `json:"srt_url,omitempty"`
}
