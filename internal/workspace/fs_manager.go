package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fsManager keeps one directory per task under baseDir.
type fsManager struct {
	baseDir string
	now     func() time.Time
}

var _ Manager = (*fsManager)(nil)

// NewFSManager returns a filesystem-backed Manager rooted at baseDir.
func NewFSManager(baseDir string) (Manager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}
	return &fsManager{
		baseDir: filepath.Clean(trimmed),
		now:     time.Now,
	}, nil
}

func (m *fsManager) Create(ctx context.Context, taskID string) (Workspace, error) {
	if err := ctx.Err(); err != nil {
		return Workspace{}, err
	}

	path, err := m.pathFor(taskID)
	if err != nil {
		return Workspace{}, err
	}
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create workspace base directory: %w", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create workspace for task %q: %w", taskID, err)
	}
	return Workspace{TaskID: taskID, Dir: path}, nil
}

func (m *fsManager) Open(ctx context.Context, taskID string) (Workspace, error) {
	if err := ctx.Err(); err != nil {
		return Workspace{}, err
	}

	path, err := m.pathFor(taskID)
	if err != nil {
		return Workspace{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Workspace{}, fmt.Errorf("open workspace for task %q: %w", taskID, err)
	}
	if !info.IsDir() {
		return Workspace{}, fmt.Errorf("workspace path for task %q is not a directory", taskID)
	}
	return Workspace{TaskID: taskID, Dir: path}, nil
}

// Cleanup compares directory modification time against the cutoff, so
// writing an artifact keeps a workspace alive.
func (m *fsManager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan <= 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read workspace base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	var report CleanupReport
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read workspace entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			report.KeptDirs++
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.baseDir, entry.Name())); err != nil {
			return report, fmt.Errorf("remove workspace %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}
	return report, nil
}

func (m *fsManager) pathFor(taskID string) (string, error) {
	if err := validateTaskID(taskID); err != nil {
		return "", err
	}
	return filepath.Join(m.baseDir, taskID), nil
}

// WriteArtifact writes data to name inside the workspace.
func (w Workspace) WriteArtifact(name string, data []byte) error {
	if err := validateTaskID(name); err != nil {
		return fmt.Errorf("artifact name: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.Dir, name), data, 0o644); err != nil {
		return fmt.Errorf("write artifact %q: %w", name, err)
	}
	return nil
}

func validateTaskID(id string) error {
	trimmed := strings.TrimSpace(id)
	switch {
	case trimmed == "":
		return fmt.Errorf("id is empty")
	case trimmed == "." || trimmed == "..":
		return fmt.Errorf("id %q is invalid", id)
	case strings.ContainsAny(trimmed, `/\`):
		return fmt.Errorf("id %q must not contain path separators", id)
	case filepath.Clean(trimmed) != trimmed:
		return fmt.Errorf("id %q is invalid", id)
	}
	return nil
}
