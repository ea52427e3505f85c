package scrape

import (
	"context"

	"github.com/kailas-cloud/dsrank/internal/domain"
)

// Registry lists datasets and fetches their descriptions.
type Registry interface {
	ListDatasets(ctx context.Context) ([]domain.DatasetRef, error)
	GetDataset(ctx context.Context, id string) (domain.Dataset, error)
}
