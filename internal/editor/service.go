package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge/internal/captions"
	"github.com/clipforge/clipforge/internal/frames"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/stock"
	"github.com/clipforge/clipforge/internal/timeline"
	"github.com/clipforge/clipforge/internal/transcript"
)

// Options wires the service's collaborators. Stock, Improver, and
// Transcriber may be nil when the corresponding API keys are not
// configured; the operations that need them fail with ErrInvalidInput.
type Options struct {
	Store          *timeline.Store
	Runner         *media.Runner
	Cache          *frames.Cache
	Resync         *transcript.Resynchronizer
	Transcriber    transcript.Transcriber
	Jobs           *jobs.Manager
	Stock          *stock.Client
	Analyzer       *stock.Analyzer
	Improver       *captions.Improver
	ExportDir      string
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type Service struct {
	store          *timeline.Store
	runner         *media.Runner
	cache          *frames.Cache
	resync         *transcript.Resynchronizer
	transcriber    transcript.Transcriber
	jobs           *jobs.Manager
	stock          *stock.Client
	analyzer       *stock.Analyzer
	improver       *captions.Improver
	exportDir      string
	maxUploadBytes int64
	locks          *lockRegistry
	logger         *slog.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		store:          opts.Store,
		runner:         opts.Runner,
		cache:          opts.Cache,
		resync:         opts.Resync,
		transcriber:    opts.Transcriber,
		jobs:           opts.Jobs,
		stock:          opts.Stock,
		analyzer:       opts.Analyzer,
		improver:       opts.Improver,
		exportDir:      opts.ExportDir,
		maxUploadBytes: opts.MaxUploadBytes,
		locks:          newLockRegistry(),
		logger:         opts.Logger,
	}
}

// mutate runs one exclusive mutation against a project: load, deep-copy,
// apply, persist whole. The media file the project pointed at before the
// mutation is removed once the new record is safely on disk.
func (s *Service) mutate(ctx context.Context, projectID string, fn func(ctx context.Context, p *timeline.Project) error) (*timeline.Project, error) {
	if !s.locks.tryAcquire(projectID) {
		return nil, fmt.Errorf("%w: %s", ErrBusy, projectID)
	}
	defer s.locks.release(projectID)

	current, err := s.store.Load(projectID)
	if err != nil {
		return nil, classify(err)
	}
	oldMedia := current.MediaPath

	next := current.Clone()
	if err := fn(ctx, next); err != nil {
		return nil, classify(err)
	}

	if err := timeline.CheckContiguous(next.Scenes, next.Duration); err != nil {
		return nil, fmt.Errorf("timeline inconsistent after edit: %w", err)
	}
	if err := timeline.CheckFramesInScenes(next.Frames, next.Scenes); err != nil {
		return nil, fmt.Errorf("frame cache inconsistent after edit: %w", err)
	}

	if err := s.store.Save(next); err != nil {
		return nil, classify(err)
	}

	if next.MediaPath != oldMedia {
		if err := os.Remove(s.store.MediaPath(oldMedia)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cannot remove superseded media", "path", oldMedia, "error", err)
		}
	}
	return next, nil
}

// nextMediaName is the versioned file name the next rebuilt media gets.
func nextMediaName(p *timeline.Project) string {
	return fmt.Sprintf("%s_v%d.mp4", p.ID, p.Revision+1)
}

// allowedUploadExts are the container formats accepted for ingest.
var allowedUploadExts = map[string]bool{
	".mp4": true, ".mov": true, ".m4v": true, ".webm": true, ".avi": true, ".mkv": true,
}

// CreateProject ingests an uploaded video: store it, probe it, detect
// scenes, transcribe if a transcriber is configured, and build the preview
// cache.
func (s *Service) CreateProject(ctx context.Context, fileName string, src io.Reader) (*timeline.Project, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedUploadExts[ext] {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, ext)
	}

	id := uuid.NewString()
	mediaName := id + ext
	mediaAbs := s.store.MediaPath(mediaName)

	if err := s.saveUpload(mediaAbs, src); err != nil {
		return nil, classify(err)
	}

	probe, err := s.runner.Probe(ctx, mediaAbs)
	if err != nil {
		os.Remove(mediaAbs)
		return nil, classify(err)
	}
	if !probe.HasVideo {
		os.Remove(mediaAbs)
		return nil, fmt.Errorf("%w: uploaded file has no video stream", ErrInvalidInput)
	}

	intervals, err := s.runner.DetectScenes(ctx, mediaAbs, probe.Duration)
	if err != nil {
		os.Remove(mediaAbs)
		return nil, classify(err)
	}

	p := &timeline.Project{
		ID:        id,
		FileName:  fileName,
		MediaPath: mediaName,
		Duration:  probe.Duration,
	}
	for _, iv := range intervals {
		p.Scenes = append(p.Scenes, timeline.Scene{ID: uuid.NewString(), Start: iv.Start, End: iv.End})
	}

	if s.transcriber != nil {
		res, err := s.transcriber.Transcribe(ctx, mediaAbs)
		if err != nil {
			s.logger.Warn("initial transcription failed", "project_id", id, "error", err)
		} else {
			p.Segments = res.Segments
			p.Language = res.Language
			p.FullTranscript = res.Text
			if p.FullTranscript == "" {
				p.FullTranscript = timeline.JoinText(res.Segments)
			}
		}
	}

	if err := s.cache.Rebuild(ctx, p, mediaAbs); err != nil {
		os.Remove(mediaAbs)
		return nil, classify(err)
	}

	if err := s.store.Save(p); err != nil {
		os.Remove(mediaAbs)
		return nil, classify(err)
	}

	s.logger.Info("project created",
		"project_id", id, "duration", probe.Duration, "scenes", len(p.Scenes))
	return p, nil
}

func (s *Service) saveUpload(dest string, src io.Reader) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cannot create media file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(src, s.maxUploadBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("cannot write media file: %w", err)
	}
	if written > s.maxUploadBytes {
		os.Remove(dest)
		return fmt.Errorf("%w: upload exceeds %d bytes", ErrInvalidInput, s.maxUploadBytes)
	}
	if written == 0 {
		os.Remove(dest)
		return fmt.Errorf("%w: upload is empty", ErrInvalidInput)
	}
	return nil
}

func (s *Service) GetProject(id string) (*timeline.Project, error) {
	p, err := s.store.Load(id)
	return p, classify(err)
}

func (s *Service) ListProjects() ([]*timeline.Project, error) {
	return s.store.List()
}

// DeleteProject removes the record, its media, and its cached previews.
func (s *Service) DeleteProject(id string) error {
	if !s.locks.tryAcquire(id) {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}
	defer s.locks.release(id)

	p, err := s.store.Load(id)
	if err != nil {
		return classify(err)
	}
	if err := s.store.Delete(id); err != nil {
		return classify(err)
	}
	os.Remove(s.store.MediaPath(p.MediaPath))
	if err := s.cache.Drop(id); err != nil {
		s.logger.Warn("cannot drop preview cache", "project_id", id, "error", err)
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// DeleteScene cuts a scene out of the media and closes the gap. Everything
// after the cut shifts earlier; transcript segments overlapping the cut are
// dropped or re-transcribed.
func (s *Service) DeleteScene(ctx context.Context, projectID, sceneID string, retranscribe bool) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, func(ctx context.Context, p *timeline.Project) error {
		scene := p.SceneByID(sceneID)
		if scene == nil {
			return fmt.Errorf("%w: scene %s", ErrNotFound, sceneID)
		}
		if len(p.Scenes) == 1 {
			return fmt.Errorf("%w: cannot delete the only scene", ErrInvalidInput)
		}
		pivot, editEnd := scene.Start, scene.End

		newName := nextMediaName(p)
		newAbs := s.store.MediaPath(newName)
		if err := s.runner.DeleteInterval(ctx, s.store.MediaPath(p.MediaPath), scene.Start, scene.End, newAbs); err != nil {
			return err
		}
		probe, err := s.runner.Probe(ctx, newAbs)
		if err != nil {
			return err
		}

		_, scenes, _ := timeline.RemoveScene(p.Scenes, sceneID)
		p.Scenes = timeline.CloseToDuration(scenes, probe.Duration)

		delta := probe.Duration - p.Duration
		s.resync.Resync(ctx, p, newAbs, pivot, editEnd, delta, retranscribe)

		p.Duration = probe.Duration
		p.MediaPath = newName
		return s.cache.Rebuild(ctx, p, newAbs)
	})
}

// AddScene splices an uploaded clip in at any point on the timeline. The
// clip is rescaled to the project geometry and becomes a new scene of its
// own; a scene containing the insert point is split there.
func (s *Service) AddScene(ctx context.Context, projectID, clipPath string, at float64, retranscribe bool) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, func(ctx context.Context, p *timeline.Project) error {
		if at < -timeline.Epsilon || at > p.Duration+timeline.Epsilon {
			return fmt.Errorf("%w: insert point %.3f outside [0, %.3f]", ErrInvalidInput, at, p.Duration)
		}

		clipProbe, err := s.runner.Probe(ctx, clipPath)
		if err != nil {
			return err
		}
		if !clipProbe.HasVideo {
			return fmt.Errorf("%w: clip has no video stream", ErrInvalidInput)
		}

		newName := nextMediaName(p)
		newAbs := s.store.MediaPath(newName)
		if err := s.runner.InsertAt(ctx, s.store.MediaPath(p.MediaPath), clipPath, at, newAbs); err != nil {
			return err
		}
		probe, err := s.runner.Probe(ctx, newAbs)
		if err != nil {
			return err
		}

		newScene := timeline.Scene{ID: uuid.NewString(), Start: at, End: at + clipProbe.Duration}
		scenes := timeline.InsertScene(p.Scenes, newScene, uuid.NewString())
		p.Scenes = timeline.CloseToDuration(scenes, probe.Duration)

		delta := probe.Duration - p.Duration
		s.resync.Resync(ctx, p, newAbs, at, at, delta, retranscribe)

		p.Duration = probe.Duration
		p.MediaPath = newName
		return s.cache.Rebuild(ctx, p, newAbs)
	})
}

// AddStockScene searches stock footage and splices the best match in at the
// given point.
func (s *Service) AddStockScene(ctx context.Context, projectID, query string, at, targetDuration float64, retranscribe bool) (*timeline.Project, error) {
	clipPath, cleanup, err := s.fetchStockClip(ctx, query, targetDuration)
	if err != nil {
		return nil, classify(err)
	}
	defer cleanup()
	return s.AddScene(ctx, projectID, clipPath, at, retranscribe)
}

// ReplaceSceneWithStock swaps one scene's footage for a stock clip. The
// clip's own length wins: the scene is resized to the clip's probed duration
// and everything after it shifts by the difference.
func (s *Service) ReplaceSceneWithStock(ctx context.Context, projectID, sceneID, query string, retranscribe bool) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, func(ctx context.Context, p *timeline.Project) error {
		scene := p.SceneByID(sceneID)
		if scene == nil {
			return fmt.Errorf("%w: scene %s", ErrNotFound, sceneID)
		}
		pivot, editEnd := scene.Start, scene.End

		clipPath, cleanup, err := s.fetchStockClip(ctx, query, scene.Duration())
		if err != nil {
			return err
		}
		defer cleanup()

		clipProbe, err := s.runner.Probe(ctx, clipPath)
		if err != nil {
			return err
		}
		if !clipProbe.HasVideo {
			return fmt.Errorf("%w: stock clip has no video stream", ErrInvalidInput)
		}

		newName := nextMediaName(p)
		newAbs := s.store.MediaPath(newName)
		err = s.runner.ReplaceInterval(ctx, s.store.MediaPath(p.MediaPath), clipPath,
			scene.Start, scene.End, media.ReplaceFreeform, newAbs)
		if err != nil {
			return err
		}
		probe, err := s.runner.Probe(ctx, newAbs)
		if err != nil {
			return err
		}

		scenes, _, _ := timeline.ResizeScene(p.Scenes, sceneID, clipProbe.Duration)
		p.Scenes = timeline.CloseToDuration(scenes, probe.Duration)

		delta := probe.Duration - p.Duration
		s.resync.Resync(ctx, p, newAbs, pivot, editEnd, delta, retranscribe)

		p.Duration = probe.Duration
		p.MediaPath = newName
		return s.cache.Rebuild(ctx, p, newAbs)
	})
}

func (s *Service) fetchStockClip(ctx context.Context, query string, targetDuration float64) (string, func(), error) {
	if s.stock == nil {
		return "", nil, fmt.Errorf("%w: stock search is not configured", ErrInvalidInput)
	}
	results, err := s.stock.Search(ctx, query, targetDuration, 1)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, fmt.Errorf("%w: no stock footage for %q near %.1fs", ErrNotFound, query, targetDuration)
	}

	tmp, err := os.CreateTemp("", "stock-*.mp4")
	if err != nil {
		return "", nil, fmt.Errorf("cannot create stock download target: %w", err)
	}
	tmp.Close()
	if err := s.stock.Download(ctx, results[0], tmp.Name()); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// AnalyzeScene suggests a stock search query for a scene from its thumbnail
// and the speech that overlaps it.
func (s *Service) AnalyzeScene(ctx context.Context, projectID, sceneID string) (string, error) {
	if s.analyzer == nil {
		return "", fmt.Errorf("%w: scene analysis is not configured", ErrInvalidInput)
	}
	p, err := s.store.Load(projectID)
	if err != nil {
		return "", classify(err)
	}
	scene := p.SceneByID(sceneID)
	if scene == nil {
		return "", fmt.Errorf("%w: scene %s", ErrNotFound, sceneID)
	}
	if scene.ThumbnailPath == "" {
		return "", fmt.Errorf("%w: scene %s has no thumbnail yet", ErrInvalidInput, sceneID)
	}

	var speech []string
	for _, seg := range p.Segments {
		if seg.End > scene.Start && seg.Start < scene.End {
			speech = append(speech, strings.TrimSpace(seg.Text))
		}
	}

	query, err := s.analyzer.SuggestQuery(ctx,
		filepath.Join(s.cache.Dir(), scene.ThumbnailPath), strings.Join(speech, " "))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolFailure, err)
	}
	return query, nil
}

// PreviewSceneStock searches stock footage sized to a scene without
// modifying anything.
func (s *Service) PreviewSceneStock(ctx context.Context, projectID, sceneID, query string, count int) ([]stock.Video, error) {
	p, err := s.store.Load(projectID)
	if err != nil {
		return nil, classify(err)
	}
	scene := p.SceneByID(sceneID)
	if scene == nil {
		return nil, fmt.Errorf("%w: scene %s", ErrNotFound, sceneID)
	}
	return s.SearchStock(ctx, query, scene.Duration(), count)
}

// RenameProject updates the display file name. Structural fields are not
// client-writable.
func (s *Service) RenameProject(ctx context.Context, projectID, fileName string) (*timeline.Project, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, fmt.Errorf("%w: file name is empty", ErrInvalidInput)
	}
	return s.mutate(ctx, projectID, func(_ context.Context, p *timeline.Project) error {
		p.FileName = fileName
		return nil
	})
}

// SearchStock exposes raw stock search results for preview.
func (s *Service) SearchStock(ctx context.Context, query string, targetDuration float64, count int) ([]stock.Video, error) {
	if s.stock == nil {
		return nil, fmt.Errorf("%w: stock search is not configured", ErrInvalidInput)
	}
	videos, err := s.stock.Search(ctx, query, targetDuration, count)
	return videos, classify(err)
}

// ProcessBackground runs phase one of a background replacement. The project
// is not mutated; the returned job id is what a later merge refers to.
func (s *Service) ProcessBackground(ctx context.Context, projectID, sceneID string, bg timeline.Background) (*jobs.Job, error) {
	if bg.Kind != "color" && bg.Kind != "image" {
		return nil, fmt.Errorf("%w: unknown background kind %q", ErrInvalidInput, bg.Kind)
	}
	if bg.Value == "" {
		return nil, fmt.Errorf("%w: background value is empty", ErrInvalidInput)
	}

	p, err := s.store.Load(projectID)
	if err != nil {
		return nil, classify(err)
	}
	scene := p.SceneByID(sceneID)
	if scene == nil {
		return nil, fmt.Errorf("%w: scene %s", ErrNotFound, sceneID)
	}

	job, err := s.jobs.Process(ctx, projectID, s.store.MediaPath(p.MediaPath), *scene, bg)
	return job, classify(err)
}

// MergeBackground runs phase two: splice a completed job's footage over its
// scene. The job must still match the scene's current bounds; an edit made
// between the two phases invalidates it.
func (s *Service) MergeBackground(ctx context.Context, projectID, jobID string) (*timeline.Project, error) {
	p, err := s.mutate(ctx, projectID, func(ctx context.Context, p *timeline.Project) error {
		job, err := s.jobs.Take(ctx, jobID)
		if err != nil {
			return err
		}
		if job.ProjectID != projectID {
			return fmt.Errorf("%w: job %s belongs to another project", ErrInvalidInput, jobID)
		}
		scene := p.SceneByID(job.SceneID)
		if scene == nil {
			return fmt.Errorf("%w: scene %s no longer exists", ErrInvalidInput, job.SceneID)
		}
		if math.Abs(scene.Start-job.SceneStart) > timeline.Epsilon ||
			math.Abs(scene.End-job.SceneEnd) > timeline.Epsilon {
			return fmt.Errorf("%w: scene %s moved since the job was processed", ErrInvalidInput, job.SceneID)
		}

		newName := nextMediaName(p)
		newAbs := s.store.MediaPath(newName)
		err = s.runner.ReplaceInterval(ctx, s.store.MediaPath(p.MediaPath), job.ProcessedPath,
			scene.Start, scene.End, media.ReplaceSyncAudio, newAbs)
		if err != nil {
			return err
		}
		probe, err := s.runner.Probe(ctx, newAbs)
		if err != nil {
			return err
		}

		p.Scenes = timeline.CloseToDuration(p.Scenes, probe.Duration)
		p.SceneByID(job.SceneID).Background = &timeline.Background{Kind: job.BackgroundKind, Value: job.BackgroundValue}
		p.Duration = probe.Duration
		p.MediaPath = newName
		return s.cache.Rebuild(ctx, p, newAbs)
	})
	if err != nil {
		return nil, err
	}

	if err := s.jobs.Discard(ctx, jobID); err != nil {
		s.logger.Warn("cannot discard merged job", "job_id", jobID, "error", err)
	}
	return p, nil
}

// GetBackgroundJob fetches a still-mergeable job by id.
func (s *Service) GetBackgroundJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	job, err := s.jobs.Take(ctx, jobID)
	return job, classify(err)
}

// DiscardBackgroundJob abandons a completed job without merging it.
func (s *Service) DiscardBackgroundJob(ctx context.Context, jobID string) error {
	return classify(s.jobs.Discard(ctx, jobID))
}

// ExportOptions selects how the final file is rendered. Resolution is one
// of "original" (or empty), "1080p", or "720p".
type ExportOptions struct {
	Resolution   string
	BurnCaptions bool
	IncludeSRT   bool
}

// ExportResult is the produced file plus the optional subtitle sidecar.
type ExportResult struct {
	Path    string
	SRTPath string
}

func resolutionSize(resolution string) (width, height int, err error) {
	switch resolution {
	case "", "original":
		return 0, 0, nil
	case "1080p":
		return 1920, 1080, nil
	case "720p":
		return 1280, 720, nil
	default:
		return 0, 0, fmt.Errorf("%w: unknown resolution %q", ErrInvalidInput, resolution)
	}
}

// Export renders the project's current media into the export directory.
// A plain export is a stream-copy remux; requesting a resolution or burned
// captions forces a re-encode.
func (s *Service) Export(ctx context.Context, projectID string, opts ExportOptions) (*ExportResult, error) {
	width, height, err := resolutionSize(opts.Resolution)
	if err != nil {
		return nil, err
	}

	p, err := s.store.Load(projectID)
	if err != nil {
		return nil, classify(err)
	}

	base := strings.TrimSuffix(p.FileName, filepath.Ext(p.FileName))
	if base == "" {
		base = p.ID
	}
	base = fmt.Sprintf("%s_v%d", base, p.Revision)
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create export dir: %w", err)
	}

	result := &ExportResult{Path: filepath.Join(s.exportDir, base+".mp4")}

	var burnPath string
	if opts.BurnCaptions || opts.IncludeSRT {
		srt := captions.RenderSRT(p.Segments)
		if srt == "" {
			return nil, fmt.Errorf("%w: project has no transcript to caption", ErrInvalidInput)
		}
		srtPath := filepath.Join(s.exportDir, base+".srt")
		if err := os.WriteFile(srtPath, []byte(srt), 0644); err != nil {
			return nil, fmt.Errorf("cannot write subtitle file: %w", err)
		}
		if opts.BurnCaptions {
			burnPath = srtPath
		}
		if opts.IncludeSRT {
			result.SRTPath = srtPath
		} else {
			defer os.Remove(srtPath)
		}
	}

	spec := media.ExportSpec{Width: width, Height: height, SubtitlePath: burnPath}
	if err := s.runner.Export(ctx, s.store.MediaPath(p.MediaPath), result.Path, spec); err != nil {
		return nil, classify(err)
	}

	s.logger.Info("project exported",
		"project_id", projectID, "path", result.Path, "resolution", opts.Resolution,
		"burn_captions", opts.BurnCaptions)
	return result, nil
}

// CaptionsSRT renders the project transcript as a SubRip document.
func (s *Service) CaptionsSRT(projectID string) (string, error) {
	p, err := s.store.Load(projectID)
	if err != nil {
		return "", classify(err)
	}
	return captions.RenderSRT(p.Segments), nil
}

// ImproveCaption rewrites caption text in one of the supported styles.
func (s *Service) ImproveCaption(ctx context.Context, text, style string) (string, error) {
	if s.improver == nil {
		return "", fmt.Errorf("%w: caption improvement is not configured", ErrInvalidInput)
	}
	out, err := s.improver.Improve(ctx, text, style)
	if err != nil {
		return "", improveError(err)
	}
	return out, nil
}

// improveError separates rejected input from provider failures: only the
// former is the caller's fault.
func improveError(err error) error {
	if errors.Is(err, captions.ErrUnknownStyle) || errors.Is(err, captions.ErrEmptyText) {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	return fmt.Errorf("%w: %s", ErrToolFailure, err)
}
