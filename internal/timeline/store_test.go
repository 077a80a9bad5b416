package timeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	p := &Project{
		ID:        "proj-1",
		FileName:  "clip.mp4",
		MediaPath: "clip.mp4",
		Duration:  10,
		Scenes:    []Scene{{ID: "scene-0", Start: 0, End: 10}},
		Segments:  []TranscriptSegment{{ID: "seg-0", Start: 0, End: 3, Text: "hello"}},
		CreatedAt: time.Now().UTC(),
	}

	if err := store.Save(p); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if p.Revision != 1 {
		t.Errorf("Revision = %d, want 1", p.Revision)
	}

	loaded, err := store.Load("proj-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Duration != 10 || len(loaded.Scenes) != 1 || loaded.Scenes[0].ID != "scene-0" {
		t.Errorf("loaded project mismatch: %+v", loaded)
	}
	if loaded.Segments[0].Text != "hello" {
		t.Errorf("segment text = %q, want hello", loaded.Segments[0].Text)
	}
}

func TestStore_RevisionIncrements(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	p := &Project{ID: "proj-1"}
	for i := 1; i <= 3; i++ {
		if err := store.Save(p); err != nil {
			t.Fatalf("Save() #%d error = %v", i, err)
		}
		if p.Revision != int64(i) {
			t.Errorf("Revision after save #%d = %d, want %d", i, p.Revision, i)
		}
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	_, err = store.Load("nope")
	if !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Load() error = %v, want ErrProjectNotFound", err)
	}
}

func TestStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	for _, id := range []string{"../evil", "a/b", "..", ""} {
		if _, err := store.Load(id); err == nil {
			t.Errorf("Load(%q) should fail", id)
		}
	}
}

func TestStore_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	if err := store.Save(&Project{ID: "proj-1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestProject_Clone_IsDeep(t *testing.T) {
	p := &Project{
		ID:     "p",
		Scenes: []Scene{{ID: "a", Start: 0, End: 5, Background: &Background{Kind: "color", Value: "#fff"}}},
		Segments: []TranscriptSegment{
			{ID: "s", Start: 0, End: 2, Text: "x", Words: []Word{{Text: "x", Start: 0, End: 1}}},
		},
	}

	cp := p.Clone()
	cp.Scenes[0].End = 99
	cp.Scenes[0].Background.Value = "#000"
	cp.Segments[0].Words[0].Start = 42

	if p.Scenes[0].End == 99 {
		t.Error("Clone() shares scene slice")
	}
	if p.Scenes[0].Background.Value == "#000" {
		t.Error("Clone() shares background pointer")
	}
	if p.Segments[0].Words[0].Start == 42 {
		t.Error("Clone() shares word slice")
	}
}
