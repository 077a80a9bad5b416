// Package frames maintains the per-project preview cache: half-second
// sampled filmstrip frames and one thumbnail per scene. The cache is derived
// state; after any timeline mutation it is rebuilt wholesale rather than
// patched, with a fresh token so stale client URLs can never alias new
// content.
package frames

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clipforge/clipforge/internal/media"
	"github.com/clipforge/clipforge/internal/timeline"
)

// maxParallelScenes bounds concurrent ffmpeg extractions during a rebuild.
const maxParallelScenes = 4

// Cache owns the on-disk preview asset tree, one subtree per project.
type Cache struct {
	runner *media.Runner
	dir    string
	logger *slog.Logger
}

func NewCache(runner *media.Runner, dir string, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create cache dir: %w", err)
	}
	return &Cache{runner: runner, dir: dir, logger: logger}, nil
}

// Dir returns the cache root, for serving assets over HTTP.
func (c *Cache) Dir() string {
	return c.dir
}

// Rebuild discards the project's cached frames and thumbnails and extracts
// them again from mediaPath, scene by scene. On success the project's Frames
// and per-scene thumbnail fields are replaced in place, all stamped with a
// new rebuild token.
func (c *Cache) Rebuild(ctx context.Context, p *timeline.Project, mediaPath string) error {
	token := uuid.NewString()

	framesRoot := filepath.Join(c.dir, p.ID, "frames")
	thumbsRoot := filepath.Join(c.dir, p.ID, "thumbs")
	for _, dir := range []string{framesRoot, thumbsRoot} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cannot clear cache dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create cache dir: %w", err)
		}
	}

	perScene := make([][]timeline.Frame, len(p.Scenes))
	thumbs := make([]string, len(p.Scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelScenes)
	for i := range p.Scenes {
		g.Go(func() error {
			scene := p.Scenes[i]

			sceneDir := filepath.Join(framesRoot, scene.ID)
			files, err := c.runner.ExtractFrames(gctx, mediaPath, scene.Start, scene.Duration(), sceneDir)
			if err != nil {
				return fmt.Errorf("extracting frames for scene %s: %w", scene.ID, err)
			}
			perScene[i], err = c.framesForScene(scene, files, token)
			if err != nil {
				return err
			}

			thumbPath := filepath.Join(thumbsRoot, scene.ID+".jpg")
			midpoint := scene.Start + scene.Duration()/2
			if err := c.runner.ExtractThumbnail(gctx, mediaPath, midpoint, thumbPath); err != nil {
				return fmt.Errorf("extracting thumbnail for scene %s: %w", scene.ID, err)
			}
			thumbs[i], err = filepath.Rel(c.dir, thumbPath)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var all []timeline.Frame
	for i := range p.Scenes {
		p.Scenes[i].ThumbnailPath = thumbs[i]
		p.Scenes[i].ThumbnailToken = token
		all = append(all, perScene[i]...)
	}
	p.Frames = all

	c.logger.Info("frame cache rebuilt",
		"project_id", p.ID,
		"scenes", len(p.Scenes),
		"frames", len(all),
		"token", token,
	)
	return nil
}

// framesForScene converts extracted files into timeline frames, keeping only
// those strictly inside the scene's half-open interval. Extraction rounds up
// at the tail, so the last sample can land on or past the scene end.
func (c *Cache) framesForScene(scene timeline.Scene, files []media.FrameFile, token string) ([]timeline.Frame, error) {
	out := make([]timeline.Frame, 0, len(files))
	for i, f := range files {
		if f.Time >= scene.End-timeline.Epsilon {
			break
		}
		rel, err := filepath.Rel(c.dir, f.Path)
		if err != nil {
			return nil, fmt.Errorf("cache path escape for %s: %w", f.Path, err)
		}
		out = append(out, timeline.Frame{
			ID:           fmt.Sprintf("%s-%04d", scene.ID, i),
			Time:         f.Time,
			Path:         rel,
			SceneID:      scene.ID,
			RebuildToken: token,
		})
	}
	return out, nil
}

// Drop removes every cached asset for a project.
func (c *Cache) Drop(projectID string) error {
	return os.RemoveAll(filepath.Join(c.dir, projectID))
}
