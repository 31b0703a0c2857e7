// Package workspace implements the WorkspaceManager: it resolves the
// repository root, materializes a per-submission workspace from the
// template tree, locates the produced test-report artifact, and tears
// the workspace down again.
package workspace

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"tracepoint/internal/apperr"
	"tracepoint/internal/logger"
)

const (
	templateDirName  = "judge-template"
	serverDirName    = "server"
	workspaceRootDir = "tracepoint-workspaces"
	packageCacheDir  = "_nuget-cache"
)

// Paths is the immutable record of where everything for one submission
// lives on disk.
type Paths struct {
	RepoRoot        string
	TemplateDir     string
	WorkRoot        string
	WorkDir         string
	PackageCacheDir string
}

// Manager resolves the repository root once and materializes workspaces
// beneath the OS temp directory for each submission it is asked to
// create.
type Manager struct {
	repoRoot string
	workRoot string
}

// New resolves the repository root by walking upward from cwd, looking
// for a directory that contains both a judge-template and a server
// subdirectory.
func New(cwd string) (*Manager, error) {
	root, err := findRepoRoot(cwd)
	if err != nil {
		return nil, err
	}
	return &Manager{
		repoRoot: root,
		workRoot: filepath.Join(os.TempDir(), workspaceRootDir),
	}, nil
}

func findRepoRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", apperr.Wrapf(err, apperr.WorkspaceInit, "resolve cwd failed")
	}
	for {
		templatePath := filepath.Join(dir, templateDirName)
		serverPath := filepath.Join(dir, serverDirName)
		if isDir(templatePath) && isDir(serverPath) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", apperr.New(apperr.WorkspaceInit).WithMessage("judge-template/ not found above " + start)
		}
		dir = parent
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreateWorkspace materializes a fresh workspace for submissionID: a
// recursive copy of the template tree plus an empty package cache
// directory.
func (m *Manager) CreateWorkspace(ctx context.Context, submissionID string) (Paths, error) {
	templateDir := filepath.Join(m.repoRoot, templateDirName)
	if !isDir(templateDir) {
		return Paths{}, apperr.New(apperr.WorkspaceInit).WithMessage("judge-template/ missing at " + templateDir)
	}

	workDir := filepath.Join(m.workRoot, submissionID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Paths{}, apperr.Wrapf(err, apperr.WorkspaceCreate, "create workspace dir failed")
	}

	if err := copyTree(templateDir, workDir); err != nil {
		return Paths{}, apperr.Wrapf(err, apperr.WorkspaceCreate, "copy template tree failed")
	}

	cacheDir := filepath.Join(workDir, packageCacheDir)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Paths{}, apperr.Wrapf(err, apperr.WorkspaceCreate, "create package cache dir failed")
	}

	return Paths{
		RepoRoot:        m.repoRoot,
		TemplateDir:     templateDir,
		WorkRoot:        m.workRoot,
		WorkDir:         workDir,
		PackageCacheDir: cacheDir,
	}, nil
}

// FindArtifact searches root recursively for the most recently modified
// file named exactly preferredName; failing that, the most recently
// modified file matching *.trx anywhere beneath root; failing that, an
// empty path.
func FindArtifact(root, preferredName string) (string, error) {
	var exact []candidate
	var trx []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if d.Name() == preferredName {
			exact = append(exact, candidate{path, info.ModTime()})
		}
		if filepath.Ext(d.Name()) == ".trx" {
			trx = append(trx, candidate{path, info.ModTime()})
		}
		return nil
	})
	if err != nil {
		return "", apperr.Wrapf(err, apperr.WorkspaceLocate, "walk workspace failed")
	}

	if path := mostRecent(exact); path != "" {
		return path, nil
	}
	return mostRecent(trx), nil
}

type candidate struct {
	path    string
	modTime time.Time
}

func mostRecent(candidates []candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	return candidates[0].path
}

// Cleanup deletes workDir recursively unless keep is set, in which case
// it logs and leaves the workspace in place for post-mortem inspection.
// Deletion failures are swallowed and logged: cleanup is best-effort and
// must never change the verdict already produced.
func Cleanup(ctx context.Context, workDir string, keep bool) {
	if keep {
		logger.Info(ctx, "workspace kept", zap.String("work_dir", workDir))
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		logger.Warn(ctx, "workspace cleanup failed", zap.String("work_dir", workDir), zap.Error(err))
	}
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
