package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/model"
)

// Memory is a process-local Repository.
type Memory struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	models   map[string]*Model
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		datasets: map[string]*Dataset{},
		models:   map[string]*Model{},
		now:      time.Now,
	}
}

func copyDataset(d *Dataset) *Dataset {
	out := *d
	out.Raw = d.Raw.Clone()
	if d.Cleaned != nil {
		c := d.Cleaned.Clone()
		out.Cleaned = &c
	}
	return &out
}

func (m *Memory) CreateDataset(_ context.Context, name string, ds dataset.Dataset) (*Dataset, error) {
	d := &Dataset{ID: uuid.NewString(), Name: name, Raw: ds.Clone(), UploadedAt: m.now().UTC()}
	m.mu.Lock()
	m.datasets[d.ID] = d
	m.mu.Unlock()
	return copyDataset(d), nil
}

func (m *Memory) GetDataset(_ context.Context, id string) (*Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, ErrDatasetNotFound
	}
	return copyDataset(d), nil
}

func (m *Memory) SaveCleaned(_ context.Context, id string, cleaned dataset.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.datasets[id]
	if !ok {
		return ErrDatasetNotFound
	}
	c := cleaned.Clone()
	d.Cleaned = &c
	return nil
}

func (m *Memory) CreateModel(_ context.Context, datasetID string, fitted *model.Model, metrics map[string]any) (*Model, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.datasets[datasetID]; !ok {
		return nil, ErrDatasetNotFound
	}
	rec := &Model{
		ID:        uuid.NewString(),
		DatasetID: datasetID,
		Kind:      fitted.Params.Kind,
		Target:    fitted.Params.Target,
		Metrics:   metrics,
		CreatedAt: m.now().UTC(),
		Fitted:    fitted,
	}
	m.models[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (m *Memory) GetModel(_ context.Context, id string) (*Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.models[id]
	if !ok {
		return nil, ErrModelNotFound
	}
	out := *rec
	return &out, nil
}

func (m *Memory) Close() error { return nil }
