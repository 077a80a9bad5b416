package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-key", slog.New(slog.DiscardHandler))
	c.baseURL = srv.URL
	return c
}

const searchBody = `{
	"videos": [
		{"id": 1, "duration": 10, "width": 1920, "height": 1080, "image": "p1.jpg",
		 "video_files": [{"quality": "hd", "width": 1920, "file_type": "video/mp4", "link": "http://cdn/1-hd.mp4"}]},
		{"id": 2, "duration": 9, "width": 1920, "height": 1080, "image": "p2.jpg",
		 "video_files": [{"quality": "sd", "width": 640, "file_type": "video/mp4", "link": "http://cdn/2-sd.mp4"}]},
		{"id": 3, "duration": 40, "width": 1920, "height": 1080, "image": "p3.jpg",
		 "video_files": [{"quality": "hd", "width": 1920, "file_type": "video/mp4", "link": "http://cdn/3-hd.mp4"}]},
		{"id": 4, "duration": 8, "width": 1920, "height": 1080, "image": "p4.jpg",
		 "video_files": [{"quality": "hd", "width": 1280, "file_type": "video/mp4", "link": "http://cdn/4-hd.mp4"}]}
	]
}`

func TestSearch_FiltersAndSortsByCloseness(t *testing.T) {
	var gotAuth, gotQuery string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("query")
		w.Write([]byte(searchBody))
	})

	// Target 9s: id 3 (40s) is outside the tolerance band and dropped.
	got, err := c.Search(context.Background(), "ocean waves", 9, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotAuth != "test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "ocean waves" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(got) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(got))
	}
	// Closest to 9s first.
	if got[0].ID != 2 || got[1].ID != 4 && got[1].ID != 1 {
		t.Errorf("order = %d, %d, %d, want closest-first starting with 2", got[0].ID, got[1].ID, got[2].ID)
	}
	for _, v := range got {
		if v.ID == 3 {
			t.Error("result outside duration tolerance was not filtered")
		}
	}
}

func TestSearch_NoTargetKeepsAll(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("per_page") != "4" {
			t.Errorf("per_page = %q, want 4 (no over-request without target)", r.URL.Query().Get("per_page"))
		}
		w.Write([]byte(searchBody))
	})

	got, err := c.Search(context.Background(), "city", 0, 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len(results) = %d, want 4", len(got))
	}
}

func TestSearch_APIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := c.Search(context.Background(), "x", 0, 1)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
}

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	c := NewClient("k", slog.New(slog.DiscardHandler))
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	err := c.Download(context.Background(), Video{ID: 7, URL: srv.URL}, dest)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "mp4-bytes" {
		t.Errorf("downloaded content = %q, err = %v", data, err)
	}
}

func TestDownload_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	c := NewClient("k", slog.New(slog.DiscardHandler))
	dest := filepath.Join(t.TempDir(), "clip.mp4")
	if err := c.Download(context.Background(), Video{URL: srv.URL}, dest); err == nil {
		t.Error("Download() should fail on non-200")
	}
}

func TestPickFile_PrefersHDAmongWidest(t *testing.T) {
	files := []videoFile{
		{Quality: "sd", Width: 640, FileType: "video/mp4", Link: "sd-640"},
		{Quality: "hd", Width: 1280, FileType: "video/mp4", Link: "hd-1280"},
		{Quality: "sd", Width: 1920, FileType: "video/mp4", Link: "sd-1920"},
		{Quality: "hd", Width: 720, FileType: "video/webm", Link: "webm"},
	}
	if got := pickFile(files); got != "hd-1280" {
		t.Errorf("pickFile() = %q, want hd-1280", got)
	}
}

func TestPickFile_FallsBackToWidest(t *testing.T) {
	files := []videoFile{
		{Quality: "sd", Width: 960, FileType: "video/mp4", Link: "sd-960"},
		{Quality: "sd", Width: 1920, FileType: "video/mp4", Link: "sd-1920"},
	}
	if got := pickFile(files); got != "sd-1920" {
		t.Errorf("pickFile() = %q, want sd-1920", got)
	}
}

func TestPickFile_NoUsableFiles(t *testing.T) {
	if got := pickFile([]videoFile{{FileType: "video/webm", Link: "x"}}); got != "" {
		t.Errorf("pickFile() = %q, want empty", got)
	}
}

func TestWithinTolerance(t *testing.T) {
	if !withinTolerance(5, 10) || !withinTolerance(15, 10) {
		t.Error("band edges should be accepted")
	}
	if withinTolerance(4.9, 10) || withinTolerance(15.1, 10) {
		t.Error("values outside the band should be rejected")
	}
}
