package nativemod

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanupRemovesArtifactAndCreatedDirs(t *testing.T) {
	scripts := t.TempDir()
	cfg := stubConfig(t, stubCompiler(t, scripts))
	cfg.InstallDir = filepath.Join(t.TempDir(), "a", "b")

	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	artifact, err := loader.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	result := loader.Cleanup()

	if len(result.Skipped) != 0 {
		t.Errorf("expected no skipped dirs, got %v", result.Skipped)
	}
	for _, path := range []string{artifact, cfg.InstallDir, filepath.Dir(cfg.InstallDir)} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", path)
		}
	}

	// Files must be removed before the directories containing them.
	if len(result.Removed) < 3 {
		t.Fatalf("expected at least 3 removals, got %v", result.Removed)
	}
	if result.Removed[0] != artifact {
		t.Errorf("expected artifact removed first, got %v", result.Removed)
	}
}

func TestCleanupLeavesUnrelatedFilesAndPreexistingDir(t *testing.T) {
	scripts := t.TempDir()
	cfg := stubConfig(t, stubCompiler(t, scripts))

	// Install dir pre-exists and holds an unrelated file.
	if err := os.MkdirAll(cfg.InstallDir, 0o755); err != nil {
		t.Fatalf("failed to create install dir: %v", err)
	}
	unrelated := filepath.Join(cfg.InstallDir, "precious.txt")
	if err := os.WriteFile(unrelated, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("failed to write unrelated file: %v", err)
	}

	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	artifact, err := loader.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	loader.Cleanup()

	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Error("expected artifact to be removed")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Errorf("expected unrelated file to survive: %v", err)
	}
	if _, err := os.Stat(cfg.InstallDir); err != nil {
		t.Errorf("expected pre-existing install dir to survive: %v", err)
	}
}

func TestCleanupSkipsNonEmptyCreatedDir(t *testing.T) {
	scripts := t.TempDir()
	cfg := stubConfig(t, stubCompiler(t, scripts))

	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	if _, err := loader.Build(context.Background()); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	// Someone else drops a file into the directory this loader created.
	intruder := filepath.Join(cfg.InstallDir, "intruder.txt")
	if err := os.WriteFile(intruder, []byte("not ours"), 0o644); err != nil {
		t.Fatalf("failed to write intruder file: %v", err)
	}

	result := loader.Cleanup()

	if len(result.Skipped) != 1 || result.Skipped[0].Path != cfg.InstallDir {
		t.Fatalf("expected install dir to be skipped, got %v", result.Skipped)
	}
	if len(result.Skipped[0].Entries) != 1 || result.Skipped[0].Entries[0] != intruder {
		t.Errorf("expected skipped entries [%s], got %v", intruder, result.Skipped[0].Entries)
	}
	if _, err := os.Stat(intruder); err != nil {
		t.Errorf("expected intruder file to survive: %v", err)
	}

	// Once the directory is empty again, a retry removes it.
	if err := os.Remove(intruder); err != nil {
		t.Fatalf("failed to remove intruder: %v", err)
	}
	result = loader.Cleanup()
	if len(result.Removed) != 1 || result.Removed[0] != cfg.InstallDir {
		t.Errorf("expected retry to remove install dir, got %v", result.Removed)
	}
	if _, err := os.Stat(cfg.InstallDir); !os.IsNotExist(err) {
		t.Error("expected install dir gone after retry")
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	scripts := t.TempDir()
	cfg := stubConfig(t, stubCompiler(t, scripts))

	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	if _, err := loader.Build(context.Background()); err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	first := loader.Cleanup()
	if len(first.Removed) == 0 {
		t.Fatal("expected first cleanup to remove paths")
	}

	second := loader.Cleanup()
	if len(second.Removed) != 0 || len(second.Skipped) != 0 || len(second.Missing) != 0 {
		t.Errorf("expected second cleanup to be a no-op, got %+v", second)
	}
}

func TestCleanupTreatsMissingPathsAsClean(t *testing.T) {
	scripts := t.TempDir()
	cfg := stubConfig(t, stubCompiler(t, scripts))

	loader, err := NewLoader(cfg)
	if err != nil {
		t.Fatalf("NewLoader returned error: %v", err)
	}
	artifact, err := loader.Build(context.Background())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	// Remove everything behind the loader's back.
	if err := os.RemoveAll(cfg.InstallDir); err != nil {
		t.Fatalf("failed to remove install dir: %v", err)
	}

	result := loader.Cleanup()
	if len(result.Missing) != 2 {
		t.Errorf("expected 2 missing paths (artifact and dir), got %v", result.Missing)
	}
	for _, missing := range result.Missing {
		if missing != artifact && missing != cfg.InstallDir {
			t.Errorf("unexpected missing path %s", missing)
		}
	}
}

func TestListAbsDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one", "two"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	paths, err := listAbsDir(dir)
	if err != nil {
		t.Fatalf("listAbsDir returned error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 entries, got %v", paths)
	}
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			t.Errorf("expected absolute path, got %s", path)
		}
	}
}
