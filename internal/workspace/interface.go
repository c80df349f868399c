package workspace

import (
	"context"
	"time"
)

// Workspace is the scratch directory owned by one bridge task.
type Workspace struct {
	TaskID string
	Dir    string
}

// CleanupReport summarizes a cleanup run.
type CleanupReport struct {
	DeletedDirs int
	KeptDirs    int
}

// Manager owns the lifecycle of task workspaces.
type Manager interface {
	// Create makes a new, empty workspace for taskID.
	Create(ctx context.Context, taskID string) (Workspace, error)

	// Open resolves an existing workspace for taskID.
	Open(ctx context.Context, taskID string) (Workspace, error)

	// Cleanup removes workspaces not modified within olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error)
}
