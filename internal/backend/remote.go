package backend

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/ml"
)

// UploadName is the file name given to datasets pushed from the shell.
const UploadName = "dataset.csv"

// Remote trains and predicts through the backend. It satisfies ml.Remote.
type Remote struct {
	Client *Client
}

var _ ml.Remote = (*Remote)(nil)

// Train uploads ds, cleans it server-side and fits a model on the result.
func (r *Remote) Train(ctx context.Context, ds dataset.Dataset, target string, t dataset.ModelType) (ml.RemoteModel, error) {
	data, err := EncodeCSV(ds)
	if err != nil {
		return ml.RemoteModel{}, err
	}
	info, err := r.Client.Upload(ctx, UploadName, data)
	if err != nil {
		return ml.RemoteModel{}, fmt.Errorf("upload: %w", err)
	}
	if _, err := r.Client.Preprocess(ctx, info.ID); err != nil {
		return ml.RemoteModel{}, fmt.Errorf("preprocess: %w", err)
	}
	m, err := r.Client.Train(ctx, info.ID, target, t)
	if err != nil {
		return ml.RemoteModel{}, fmt.Errorf("train: %w", err)
	}
	metrics := map[string]float64{}
	for k, v := range m.Metrics {
		if f, ok := v.(float64); ok {
			metrics[k] = f
		}
	}
	return ml.RemoteModel{ID: m.ID, Metrics: metrics}, nil
}

// Predict scores a single row and formats the result for display.
func (r *Remote) Predict(ctx context.Context, modelID string, features map[string]string) (string, error) {
	row := make(map[string]any, len(features))
	for k, v := range features {
		row[k] = v
	}
	preds, err := r.Client.Predict(ctx, modelID, row)
	if err != nil {
		return "", err
	}
	if len(preds) == 0 {
		return "", fmt.Errorf("backend returned no predictions")
	}
	switch v := preds[0].(type) {
	case float64:
		return fmt.Sprintf("%.2f", v), nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// EncodeCSV writes ds with its headers in order.
func EncodeCSV(ds dataset.Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.Headers); err != nil {
		return nil, err
	}
	rec := make([]string, len(ds.Headers))
	for _, r := range ds.Rows {
		for i, h := range ds.Headers {
			rec[i] = r[h]
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
