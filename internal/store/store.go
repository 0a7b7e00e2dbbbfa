package store

import "github.com/yourorg/textbatch/pkg/types"

type Store interface {
	CreateRun(kind, inputPath, outputPath, model string) (*types.Run, error)
	FinishRun(run *types.Run) error
	GetRun(id string) (*types.Run, error)
	ListRuns() ([]types.Run, error)

	Close() error
}
