package scheduler

import (
	"context"
	"time"

	"github.com/mattjoyce/switchyard/internal/workspace"
)

//go:generate mockgen -destination=mocks/mock_cleaner.go -package=mocks github.com/mattjoyce/switchyard/internal/scheduler Cleaner

// Cleaner removes workspaces older than a retention window.
// workspace.Manager satisfies it.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (workspace.CleanupReport, error)
}

// Publisher receives sweep events. *events.Hub satisfies it.
type Publisher interface {
	Publish(eventType string, data any)
}
