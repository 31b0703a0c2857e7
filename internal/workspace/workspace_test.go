package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mkRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	must(t, os.MkdirAll(filepath.Join(root, templateDirName, "src"), 0o755))
	must(t, os.MkdirAll(filepath.Join(root, serverDirName), 0o755))
	must(t, os.WriteFile(filepath.Join(root, templateDirName, "Project.csproj"), []byte("<Project/>"), 0o644))
	must(t, os.WriteFile(filepath.Join(root, templateDirName, "src", "Program.cs"), []byte("// entry"), 0o644))
	return root
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
}

func TestNewResolvesRepoRootByWalkingUp(t *testing.T) {
	root := mkRepo(t)
	nested := filepath.Join(root, "judge-template", "src")

	mgr, err := New(nested)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if mgr.repoRoot != root {
		t.Fatalf("repoRoot = %q, want %q", mgr.repoRoot, root)
	}
}

func TestNewFailsWhenTemplateMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := New(dir); err == nil {
		t.Fatal("New returned nil error, want workspace_init failure")
	}
}

func TestCreateWorkspaceCopiesTemplateAndMakesCache(t *testing.T) {
	root := mkRepo(t)
	mgr, err := New(root)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	mgr.workRoot = t.TempDir()

	paths, err := mgr.CreateWorkspace(context.Background(), "sub123")
	if err != nil {
		t.Fatalf("CreateWorkspace returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(paths.WorkDir, "Project.csproj")); err != nil {
		t.Fatalf("template file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(paths.WorkDir, "src", "Program.cs")); err != nil {
		t.Fatalf("nested template file not copied: %v", err)
	}
	if _, err := os.Stat(paths.PackageCacheDir); err != nil {
		t.Fatalf("package cache dir not created: %v", err)
	}
	if filepath.Base(paths.PackageCacheDir) != packageCacheDir {
		t.Fatalf("PackageCacheDir = %q, want suffix %q", paths.PackageCacheDir, packageCacheDir)
	}
}

func TestFindArtifactPrefersExactNameOverTrx(t *testing.T) {
	root := t.TempDir()
	must(t, os.MkdirAll(filepath.Join(root, "TestResults"), 0o755))
	must(t, os.WriteFile(filepath.Join(root, "TestResults", "other.trx"), []byte("<x/>"), 0o644))
	time.Sleep(5 * time.Millisecond)
	must(t, os.WriteFile(filepath.Join(root, "TestResults", "results.trx"), []byte("<x/>"), 0o644))

	path, err := FindArtifact(root, "results.trx")
	if err != nil {
		t.Fatalf("FindArtifact returned error: %v", err)
	}
	if filepath.Base(path) != "results.trx" {
		t.Fatalf("FindArtifact = %q, want results.trx", path)
	}
}

func TestFindArtifactFallsBackToMostRecentTrx(t *testing.T) {
	root := t.TempDir()
	must(t, os.WriteFile(filepath.Join(root, "first.trx"), []byte("<x/>"), 0o644))
	time.Sleep(5 * time.Millisecond)
	must(t, os.WriteFile(filepath.Join(root, "second.trx"), []byte("<x/>"), 0o644))

	path, err := FindArtifact(root, "results.trx")
	if err != nil {
		t.Fatalf("FindArtifact returned error: %v", err)
	}
	if filepath.Base(path) != "second.trx" {
		t.Fatalf("FindArtifact = %q, want second.trx (most recent)", path)
	}
}

func TestFindArtifactReturnsEmptyWhenNothingMatches(t *testing.T) {
	root := t.TempDir()
	path, err := FindArtifact(root, "results.trx")
	if err != nil {
		t.Fatalf("FindArtifact returned error: %v", err)
	}
	if path != "" {
		t.Fatalf("FindArtifact = %q, want empty", path)
	}
}

func TestCleanupRemovesWorkspaceUnlessKept(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "work")
	must(t, os.MkdirAll(sub, 0o755))

	Cleanup(context.Background(), sub, true)
	if _, err := os.Stat(sub); err != nil {
		t.Fatalf("workspace removed despite keep=true: %v", err)
	}

	Cleanup(context.Background(), sub, false)
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Fatalf("workspace still present after cleanup: err=%v", err)
	}
}
