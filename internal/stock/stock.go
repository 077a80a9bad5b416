// Package stock searches and downloads stock footage from the Pexels video
// API, preferring clips whose length is close to a requested target so
// substitutions disturb the timeline as little as possible.
package stock

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.pexels.com/videos"

// durationTolerance accepts clips within this fraction of the target length.
const durationTolerance = 0.5

// overRequestFactor asks the API for more results than needed, since the
// duration filter discards most of them.
const overRequestFactor = 3

const maxPerPage = 80

// Video is one search result with its chosen downloadable rendition.
type Video struct {
	ID       int     `json:"id"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	URL      string  `json:"url"`
	Preview  string  `json:"preview"`
}

// APIError is a non-2xx response from the stock provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stock api returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Pexels video API.
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Pexels response shapes.
type searchResponse struct {
	Videos []struct {
		ID         int     `json:"id"`
		Duration   float64 `json:"duration"`
		Width      int     `json:"width"`
		Height     int     `json:"height"`
		Image      string  `json:"image"`
		VideoFiles []videoFile `json:"video_files"`
	} `json:"videos"`
}

type videoFile struct {
	Quality  string `json:"quality"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileType string `json:"file_type"`
	Link     string `json:"link"`
}

// Search returns up to count landscape clips for the query. When
// targetDuration is positive, results are filtered to within half of it
// either way and ordered by closeness to it.
func (c *Client) Search(ctx context.Context, query string, targetDuration float64, count int) ([]Video, error) {
	if count <= 0 {
		count = 1
	}
	perPage := count
	if targetDuration > 0 {
		perPage = count * overRequestFactor
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stock search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("cannot parse stock search response: %w", err)
	}

	videos := make([]Video, 0, len(parsed.Videos))
	for _, v := range parsed.Videos {
		if targetDuration > 0 && !withinTolerance(v.Duration, targetDuration) {
			continue
		}
		link := pickFile(v.VideoFiles)
		if link == "" {
			continue
		}
		videos = append(videos, Video{
			ID:       v.ID,
			Duration: v.Duration,
			Width:    v.Width,
			Height:   v.Height,
			URL:      link,
			Preview:  v.Image,
		})
	}

	if targetDuration > 0 {
		sort.SliceStable(videos, func(i, j int) bool {
			return abs(videos[i].Duration-targetDuration) < abs(videos[j].Duration-targetDuration)
		})
	}
	if len(videos) > count {
		videos = videos[:count]
	}

	c.logger.Debug("stock search complete",
		"query", query, "target_duration", targetDuration, "results", len(videos))
	return videos, nil
}

// Download streams a clip to dest without buffering it in memory.
func (c *Client) Download(ctx context.Context, v Video, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.URL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("stock download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Body: "download refused"}
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cannot create download target: %w", err)
	}

	written, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("stock download failed: %w", err)
	}

	c.logger.Info("stock clip downloaded", "video_id", v.ID, "bytes", written, "dest", dest)
	return nil
}

func withinTolerance(duration, target float64) bool {
	return duration >= target*(1-durationTolerance) && duration <= target*(1+durationTolerance)
}

// pickFile chooses the download rendition: among the three widest mp4 files,
// prefer an "hd" one, otherwise take the widest.
func pickFile(files []videoFile) string {
	mp4s := make([]videoFile, 0, len(files))
	for _, f := range files {
		if f.FileType == "video/mp4" && f.Link != "" {
			mp4s = append(mp4s, f)
		}
	}
	if len(mp4s) == 0 {
		return ""
	}
	sort.SliceStable(mp4s, func(i, j int) bool { return mp4s[i].Width > mp4s[j].Width })
	if len(mp4s) > 3 {
		mp4s = mp4s[:3]
	}
	for _, f := range mp4s {
		if f.Quality == "hd" {
			return f.Link
		}
	}
	return mp4s[0].Link
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
