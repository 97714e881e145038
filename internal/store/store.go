// Package store persists verification runs and their verdicts.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/carloslaurellineves/websearch-agent/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// RunOutcome is recorded when a run reaches a terminal state.
type RunOutcome struct {
	Status     model.RunStatus
	Stats      model.RunStats
	OutputPath string
	Error      string
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, outcome RunOutcome) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Verdicts
	SaveVerdicts(ctx context.Context, runID string, verdicts []model.LicenseVerdict) error
	ListVerdicts(ctx context.Context, runID string) ([]model.LicenseVerdict, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Nop is a Store that records nothing. It is used when history is disabled.
type Nop struct{}

var _ Store = Nop{}

func (Nop) CreateRun(_ context.Context, source string) (*model.Run, error) {
	return &model.Run{Source: source, Status: model.RunStatusRunning}, nil
}

func (Nop) FinishRun(context.Context, string, RunOutcome) error { return nil }

func (Nop) GetRun(_ context.Context, runID string) (*model.Run, error) {
	return nil, eris.Wrapf(ErrNotFound, "run %s", runID)
}

func (Nop) ListRuns(context.Context, RunFilter) ([]model.Run, error) { return nil, nil }

func (Nop) SaveVerdicts(context.Context, string, []model.LicenseVerdict) error { return nil }

func (Nop) ListVerdicts(context.Context, string) ([]model.LicenseVerdict, error) { return nil, nil }

func (Nop) Migrate(context.Context) error { return nil }

func (Nop) Close() error { return nil }
