// Package registry stores uploaded datasets and trained models for the
// analytics server.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/model"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrModelNotFound   = errors.New("model not found")
)

// Dataset is an uploaded table and, once preprocessed, its cleaned copy.
type Dataset struct {
	ID         string           `json:"id"`
	Name       string           `json:"file"`
	Raw        dataset.Dataset  `json:"-"`
	Cleaned    *dataset.Dataset `json:"-"`
	UploadedAt time.Time        `json:"uploaded_at"`
}

// IsCleaned reports whether preprocessing has run.
func (d *Dataset) IsCleaned() bool { return d.Cleaned != nil }

// Working returns the cleaned table when present, the raw one otherwise.
func (d *Dataset) Working() dataset.Dataset {
	if d.Cleaned != nil {
		return *d.Cleaned
	}
	return d.Raw
}

// Model is a trained model bound to the dataset it was fitted on.
type Model struct {
	ID        string            `json:"id"`
	DatasetID string            `json:"dataset"`
	Kind      dataset.ModelType `json:"model_type"`
	Target    string            `json:"target_column"`
	// Metrics holds the held-out scores plus "feature_columns".
	Metrics   map[string]any `json:"metrics"`
	CreatedAt time.Time      `json:"created_at"`
	Fitted    *model.Model   `json:"-"`
}

// Repository persists datasets and models. Datasets come back as copies
// callers may modify; models are immutable once created.
type Repository interface {
	CreateDataset(ctx context.Context, name string, ds dataset.Dataset) (*Dataset, error)
	GetDataset(ctx context.Context, id string) (*Dataset, error)
	SaveCleaned(ctx context.Context, id string, cleaned dataset.Dataset) error
	CreateModel(ctx context.Context, datasetID string, fitted *model.Model, metrics map[string]any) (*Model, error)
	GetModel(ctx context.Context, id string) (*Model, error)
	Close() error
}
