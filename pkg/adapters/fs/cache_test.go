package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".cache")

		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Loads Valid JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		os.MkdirAll(cacheDir, 0755)

		jsonContent := `{
			"version": 2,
			"entries": {
				"notes/1.md": {"id": 1, "title": "Title 1", "category": 2, "owner": 3}
			}
		}`
		os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(jsonContent), 0644)

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		entry, ok := c.index.Entries["notes/1.md"]
		if !ok {
			t.Fatal("Expected entry notes/1.md not found")
		}
		if entry.Title != "Title 1" || entry.CategoryID != 2 || entry.OwnerID != 3 {
			t.Errorf("Unexpected entry: %+v", entry)
		}
	})

	t.Run("Resets on Corrupted JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		os.MkdirAll(cacheDir, 0755)
		os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte("{ invalid json"), 0644)

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries after corruption, got %d", c.Len())
		}
	})

	t.Run("Resets on Old Version", func(t *testing.T) {
		tmpDir := t.TempDir()
		cacheDir := filepath.Join(tmpDir, ".cache")
		os.MkdirAll(cacheDir, 0755)
		os.WriteFile(filepath.Join(cacheDir, "index.json"), []byte(`{"version": 1, "entries": {"a.md": {"id": 1}}}`), 0644)

		c := newCache(tmpDir, ".cache")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected old index to be discarded, got %d entries", c.Len())
		}
	})
}

func TestCache_SaveAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCache(tmpDir, ".cache")

	// Not dirty: nothing written.
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
		t.Fatal("Expected no index file for a clean cache")
	}

	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.Set("notes/1.md", &indexEntry{ID: 1, Title: "one", LastModified: mtime})
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded := newCache(tmpDir, ".cache")
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, ok := reloaded.Get("notes/1.md", mtime); !ok {
		t.Error("Expected hit for matching mtime")
	}
	if _, ok := reloaded.Get("notes/1.md", mtime.Add(time.Second)); ok {
		t.Error("Expected miss for stale mtime")
	}
}

func TestCache_PruneAndDelete(t *testing.T) {
	c := newCache(t.TempDir(), ".cache")
	c.Set("notes/1.md", &indexEntry{ID: 1})
	c.Set("notes/2.md", &indexEntry{ID: 2})
	c.Set("notes/3.md", &indexEntry{ID: 3})

	c.Prune(map[string]bool{"notes/1.md": true, "notes/2.md": true})
	if c.Len() != 2 {
		t.Fatalf("Expected 2 entries after prune, got %d", c.Len())
	}

	c.Delete("notes/1.md")
	seen := 0
	c.Range(func(relPath string, entry *indexEntry) bool {
		seen++
		if relPath != "notes/2.md" {
			t.Errorf("Unexpected entry %s", relPath)
		}
		return true
	})
	if seen != 1 {
		t.Errorf("Expected 1 entry, got %d", seen)
	}
}
