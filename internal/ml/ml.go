// Package ml simulates model training and prediction over the loaded
// dataset. When a Remote is configured the analytics backend does the work.
package ml

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/task"
)

var (
	ErrNoData     = errors.New("no data available for training")
	ErrNoTarget   = errors.New("please select a target column for prediction")
	ErrNotTrained = errors.New("please train the model first")
	// ErrSuperseded means the session was reset or reloaded while the job ran.
	ErrSuperseded = errors.New("dataset changed while the job was running")
)

// MissingFeaturesError lists selected feature columns left blank.
type MissingFeaturesError struct {
	Fields []string
}

func (e *MissingFeaturesError) Error() string {
	return "please fill values for: " + strings.Join(e.Fields, ", ")
}

// Algorithm is one of the simulated learners.
type Algorithm struct {
	Key          string
	Name         string
	Label        string
	Type         dataset.ModelType
	Metrics      map[string]float64
	TrainingTime string
}

var (
	LightGBM = Algorithm{
		Key: "lightgbm", Name: "LightGBM", Label: "LightGBM Regression", Type: dataset.Regression,
		Metrics:      map[string]float64{"mse": 0.0234, "r2_score": 0.876, "mae": 0.045},
		TrainingTime: "2.3s",
	}
	CatBoost = Algorithm{
		Key: "catboost", Name: "CatBoost", Label: "CatBoost Classification", Type: dataset.Classification,
		Metrics:      map[string]float64{"accuracy": 0.892, "f1_score": 0.878, "precision": 0.901, "recall": 0.856},
		TrainingTime: "1.8s",
	}
)

// Classes are the labels a simulated classifier draws from.
var Classes = []string{"Low", "Medium", "High", "Viral"}

// DefaultFeatureCount is how many leading headers are selected for prediction.
const DefaultFeatureCount = 5

// AlgorithmFor returns the learner used for a model type.
func AlgorithmFor(t dataset.ModelType) Algorithm {
	if t == dataset.Classification {
		return CatBoost
	}
	return LightGBM
}

// LookupAlgorithm resolves an algorithm key or a model type name.
func LookupAlgorithm(name string) (Algorithm, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lightgbm", "regression":
		return LightGBM, true
	case "catboost", "classification":
		return CatBoost, true
	}
	return Algorithm{}, false
}

// DefaultSelection returns the first five headers as the feature selection.
func DefaultSelection(headers []string) []string {
	n := len(headers)
	if n > DefaultFeatureCount {
		n = DefaultFeatureCount
	}
	return append([]string(nil), headers[:n]...)
}

// RemoteModel is a model trained by the analytics backend.
type RemoteModel struct {
	ID      string
	Metrics map[string]float64
}

// Remote trains and predicts through an external service.
type Remote interface {
	Train(ctx context.Context, ds dataset.Dataset, target string, t dataset.ModelType) (RemoteModel, error)
	Predict(ctx context.Context, modelID string, features map[string]string) (string, error)
}

// Trainer drives training and prediction against a store.
type Trainer struct {
	Store       *dataset.Store
	Runner      *task.Runner
	TrainPlan   task.Plan
	PredictPlan task.Plan
	Rand        *rand.Rand
	Remote      Remote
	Logger      *zap.Logger
	Now         func() time.Time
}

// NewTrainer returns a trainer with the dashboard's default pacing.
func NewTrainer(store *dataset.Store, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		Store:       store,
		Runner:      &task.Runner{},
		TrainPlan:   task.Train,
		PredictPlan: task.Predict,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:      logger.Named("ml"),
		Now:         time.Now,
	}
}

// TrainResult describes a finished training run.
type TrainResult struct {
	Algorithm    Algorithm
	Run          dataset.TrainingRun
	Metrics      map[string]float64
	TrainingTime string
}

// Train fits the algorithm selected by the store's model type. Progress is
// reported through onTick. A reset during training discards the result.
func (t *Trainer) Train(ctx context.Context, onTick func(task.Tick)) (*TrainResult, error) {
	ds, sc, gen := t.Store.State()
	if len(ds.Rows) == 0 {
		return nil, ErrNoData
	}
	algo := AlgorithmFor(sc.ModelType)
	log := t.Logger.With(zap.String("algorithm", algo.Name), zap.Int("rows", len(ds.Rows)))
	log.Debug("training started")

	res := &TrainResult{Algorithm: algo, TrainingTime: algo.TrainingTime}
	modelID := "model_" + uuid.NewString()
	if t.Remote != nil {
		target := sc.TargetColumn
		if target == "" && len(ds.Headers) > 0 {
			target = ds.Headers[0]
		}
		m, err := t.Remote.Train(ctx, ds, target, algo.Type)
		if err != nil {
			log.Warn("remote training failed", zap.Error(err))
			return nil, fmt.Errorf("training failed: %w", err)
		}
		modelID = m.ID
		res.Metrics = m.Metrics
		res.TrainingTime = ""
	} else {
		if err := t.Runner.Run(ctx, t.TrainPlan, onTick); err != nil {
			return nil, err
		}
		res.Metrics = copyMetrics(algo.Metrics)
	}
	res.Run = dataset.TrainingRun{
		ModelID:     modelID,
		Algorithm:   algo.Name,
		DatasetSize: len(ds.Rows),
		Features:    len(ds.Headers),
		Status:      "completed",
		At:          t.Now(),
	}
	ok := t.Store.UpdateAt(gen, func(_ *dataset.Dataset, sc *dataset.Scratch) {
		sc.RecordTraining(res.Run, copyMetrics(res.Metrics))
	})
	if !ok {
		log.Debug("training result discarded after reset")
		return nil, ErrSuperseded
	}
	log.Info("training completed", zap.String("model_id", modelID))
	return res, nil
}

// PredictRequest carries the selected feature columns and their values.
type PredictRequest struct {
	// Columns selected for prediction; nil selects the first five headers.
	Columns []string
	Values  map[string]string
}

// Predict validates the request and produces a prediction for the target column.
// Validation order: target selected, model trained, every feature filled.
func (t *Trainer) Predict(ctx context.Context, req PredictRequest) (*dataset.Prediction, error) {
	ds, sc, gen := t.Store.State()
	if sc.TargetColumn == "" {
		return nil, ErrNoTarget
	}
	if !sc.Trained {
		return nil, ErrNotTrained
	}
	cols := req.Columns
	if cols == nil {
		cols = DefaultSelection(ds.Headers)
	}
	features := map[string]string{}
	var missing []string
	for _, c := range cols {
		if c == sc.TargetColumn {
			continue
		}
		v := strings.TrimSpace(req.Values[c])
		if v == "" {
			missing = append(missing, c)
			continue
		}
		features[c] = v
	}
	if len(missing) > 0 {
		return nil, &MissingFeaturesError{Fields: missing}
	}

	algo := AlgorithmFor(sc.ModelType)
	p := &dataset.Prediction{
		Algorithm: algo.Label,
		Target:    sc.TargetColumn,
		Features:  features,
	}
	if t.Remote != nil && len(sc.History) > 0 {
		v, err := t.Remote.Predict(ctx, sc.History[0].ModelID, features)
		if err != nil {
			return nil, fmt.Errorf("prediction failed: %w", err)
		}
		p.Value = v
	} else {
		if err := t.Runner.Run(ctx, t.PredictPlan, nil); err != nil {
			return nil, err
		}
		if algo.Type == dataset.Classification {
			p.Value = Classes[t.Rand.Intn(len(Classes))]
		} else {
			p.Value = fmt.Sprintf("%.2f", t.Rand.Float64()*1000)
		}
		p.Confidence = t.Rand.Intn(30) + 70
	}
	p.At = t.Now()
	if !t.Store.UpdateAt(gen, func(_ *dataset.Dataset, sc *dataset.Scratch) { sc.Prediction = p }) {
		return nil, ErrSuperseded
	}
	return p, nil
}

func copyMetrics(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
