package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/captions"
	"github.com/clipforge/clipforge/internal/editor"
	"github.com/clipforge/clipforge/internal/timeline"
)

func backgroundFromRequest(req ProcessBackgroundRequest) timeline.Background {
	return timeline.Background{Kind: req.Kind, Value: req.Value}
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Get("/projects/{id}", getProjectHandler(cfg))
		r.Put("/projects/{id}", renameProjectHandler(cfg))
		r.Delete("/projects/{id}", deleteProjectHandler(cfg))
		r.Get("/projects/{id}/captions.srt", captionsSRTHandler(cfg))

		r.Post("/scenes/delete", deleteSceneHandler(cfg))
		r.Post("/scenes/add", addSceneHandler(cfg))
		r.Post("/scenes/add-stock", addStockSceneHandler(cfg))

		r.Post("/stock-media/search", stockSearchHandler(cfg))
		r.Post("/stock-media/analyze-scene", analyzeSceneHandler(cfg))
		r.Post("/stock-media/preview-scene", previewSceneHandler(cfg))
		r.Post("/stock-media/replace-scene", replaceSceneHandler(cfg))

		r.Post("/background/process", processBackgroundHandler(cfg))
		r.Post("/background/merge", mergeBackgroundHandler(cfg))
		r.Get("/jobs/{id}", getJobHandler(cfg))
		r.Delete("/jobs/{id}", discardJobHandler(cfg))

		r.Get("/captions/styles", captionStylesHandler())
		r.Post("/captions/improve", improveCaptionHandler(cfg))

		r.Post("/export", exportHandler(cfg))
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	r.Handle("/previews/*", http.StripPrefix("/previews/", http.FileServer(http.Dir(cfg.PreviewsDir))))
	r.Handle("/exports/*", http.StripPrefix("/exports/", http.FileServer(http.Dir(cfg.ExportsDir))))

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: "0.1.0",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+1024)
		file, header, err := r.FormFile("video")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "video file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		project, err := cfg.Service.CreateProject(r.Context(), header.Filename, file)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, project)
	}
}

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects()
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, projects)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		project, err := cfg.Service.GetProject(chi.URLParam(r, "id"))
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func renameProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RenameProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		project, err := cfg.Service.RenameProject(r.Context(), chi.URLParam(r, "id"), req.FileName)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteProject(chi.URLParam(r, "id")); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func captionsSRTHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		srt, err := cfg.Service.CaptionsSRT(chi.URLParam(r, "id"))
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/x-subrip")
		w.Header().Set("Content-Disposition", `attachment; filename="captions.srt"`)
		io.WriteString(w, srt)
	}
}

func deleteSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ProjectID == "" || req.SceneID == "" {
			WriteError(w, http.StatusBadRequest, "project_id and scene_id are required", "BAD_REQUEST")
			return
		}
		project, err := cfg.Service.DeleteScene(r.Context(), req.ProjectID, req.SceneID, req.Retranscribe)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

// addSceneHandler accepts a multipart form: the clip under "clip" plus
// project_id, insert_time, and retranscribe fields.
func addSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes+1024)
		file, _, err := r.FormFile("clip")
		if err != nil {
			WriteError(w, http.StatusBadRequest, "clip file is required", "BAD_REQUEST")
			return
		}
		defer file.Close()

		projectID := r.FormValue("project_id")
		if projectID == "" {
			WriteError(w, http.StatusBadRequest, "project_id is required", "BAD_REQUEST")
			return
		}
		insertTime, err := strconv.ParseFloat(r.FormValue("insert_time"), 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "insert_time must be a number", "BAD_REQUEST")
			return
		}
		retranscribe := r.FormValue("retranscribe") == "true"

		tmp, err := os.CreateTemp("", "clip-*.mp4")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "cannot stage clip", "INTERNAL_ERROR")
			return
		}
		defer os.Remove(tmp.Name())
		_, err = io.Copy(tmp, file)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "cannot stage clip", "INTERNAL_ERROR")
			return
		}

		project, err := cfg.Service.AddScene(r.Context(), projectID, tmp.Name(), insertTime, retranscribe)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func addStockSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddStockSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ProjectID == "" || req.Query == "" {
			WriteError(w, http.StatusBadRequest, "project_id and query are required", "BAD_REQUEST")
			return
		}
		project, err := cfg.Service.AddStockScene(r.Context(),
			req.ProjectID, req.Query, req.InsertTime, req.TargetDuration, req.Retranscribe)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func stockSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StockSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Query == "" {
			WriteError(w, http.StatusBadRequest, "query is required", "BAD_REQUEST")
			return
		}
		if req.Count <= 0 {
			req.Count = 5
		}
		videos, err := cfg.Service.SearchStock(r.Context(), req.Query, req.TargetDuration, req.Count)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, videos)
	}
}

func analyzeSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnalyzeSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		query, err := cfg.Service.AnalyzeScene(r.Context(), req.ProjectID, req.SceneID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, AnalyzeSceneResponse{Query: query})
	}
}

func previewSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Count <= 0 {
			req.Count = 3
		}
		videos, err := cfg.Service.PreviewSceneStock(r.Context(), req.ProjectID, req.SceneID, req.Query, req.Count)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, videos)
	}
}

func replaceSceneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReplaceSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ProjectID == "" || req.SceneID == "" || req.Query == "" {
			WriteError(w, http.StatusBadRequest, "project_id, scene_id, and query are required", "BAD_REQUEST")
			return
		}
		project, err := cfg.Service.ReplaceSceneWithStock(r.Context(), req.ProjectID, req.SceneID, req.Query, req.Retranscribe)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func processBackgroundHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessBackgroundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		job, err := cfg.Service.ProcessBackground(r.Context(), req.ProjectID, req.SceneID,
			backgroundFromRequest(req))
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, JobToResponse(job))
	}
}

func mergeBackgroundHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MergeBackgroundRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ProjectID == "" || req.JobID == "" {
			WriteError(w, http.StatusBadRequest, "project_id and job_id are required", "BAD_REQUEST")
			return
		}
		project, err := cfg.Service.MergeBackground(r.Context(), req.ProjectID, req.JobID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, project)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := cfg.Service.GetBackgroundJob(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, JobToResponse(job))
	}
}

func discardJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DiscardBackgroundJob(r.Context(), chi.URLParam(r, "id")); err != nil {
			WriteServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func captionStylesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, CaptionStylesResponse{Styles: captions.Styles()})
	}
}

func improveCaptionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ImproveCaptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		text, err := cfg.Service.ImproveCaption(r.Context(), req.Text, req.Style)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ImproveCaptionResponse{Text: text})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.ProjectID == "" {
			WriteError(w, http.StatusBadRequest, "project_id is required", "BAD_REQUEST")
			return
		}
		result, err := cfg.Service.Export(r.Context(), req.ProjectID, editor.ExportOptions{
			Resolution:   req.Resolution,
			BurnCaptions: req.BurnCaptions,
			IncludeSRT:   req.IncludeSRT,
		})
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		resp := ExportResponse{
			Path: result.Path,
			URL:  fmt.Sprintf("/exports/%s", filepath.Base(result.Path)),
		}
		if result.SRTPath != "" {
			resp.SRTURL = fmt.Sprintf("/exports/%s", filepath.Base(result.SRTPath))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
