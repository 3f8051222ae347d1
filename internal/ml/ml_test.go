package ml

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/task"
)

func fastTrainer(s *dataset.Store) *Trainer {
	tr := NewTrainer(s, nil)
	tr.TrainPlan = task.Train.Scaled(0.005)
	tr.PredictPlan = task.Predict.Scaled(0.005)
	tr.Rand = rand.New(rand.NewSource(7))
	tr.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return tr
}

func loaded() *dataset.Store {
	s := dataset.NewStore()
	s.LoadDataset([]dataset.Record{
		{"likes": "10", "shares": "1", "reach": "100", "platform": "x", "views": "5", "extra": "z"},
		{"likes": "20", "shares": "2", "reach": "200", "platform": "y", "views": "6", "extra": "z"},
	}, []string{"likes", "shares", "reach", "platform", "views", "extra"})
	return s
}

func TestTrainRequiresData(t *testing.T) {
	tr := fastTrainer(dataset.NewStore())
	if _, err := tr.Train(context.Background(), nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v", err)
	}
}

func TestTrainRecordsHistoryAndMetrics(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	var ticks int
	res, err := tr.Train(context.Background(), func(task.Tick) { ticks++ })
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if ticks == 0 {
		t.Fatal("no progress reported")
	}
	if res.Algorithm.Name != "LightGBM" || res.Metrics["r2_score"] != 0.876 || res.TrainingTime != "2.3s" {
		t.Fatalf("result = %+v", res)
	}
	sc := s.Scratch()
	if !sc.Trained || len(sc.History) != 1 {
		t.Fatalf("scratch = %+v", sc)
	}
	h := sc.History[0]
	if h.DatasetSize != 2 || h.Features != 6 || h.Status != "completed" || h.ModelID != res.Run.ModelID {
		t.Fatalf("history = %+v", h)
	}

	s.SetModelType(dataset.Classification)
	res, err = tr.Train(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Metrics["accuracy"] != 0.892 {
		t.Fatalf("classification metrics = %v", res.Metrics)
	}
	if got := s.Scratch().History; len(got) != 2 || got[0].Algorithm != "CatBoost" {
		t.Fatalf("history = %+v", got)
	}
}

func TestTrainHistoryCappedAtFive(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	for i := 0; i < 7; i++ {
		if _, err := tr.Train(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(s.Scratch().History); n != dataset.HistoryLimit {
		t.Fatalf("history = %d", n)
	}
}

func TestTrainDiscardedAfterReset(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	tr.TrainPlan = task.Plan{Name: "train", Interval: time.Millisecond, Step: 1, Duration: 30 * time.Millisecond}
	once := false
	_, err := tr.Train(context.Background(), func(task.Tick) {
		if !once {
			once = true
			s.ResetAll()
		}
	})
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v", err)
	}
	if sc := s.Scratch(); sc.Trained || len(sc.History) != 0 {
		t.Fatalf("reset scratch mutated by stale training: %+v", sc)
	}
}

func TestTrainCancelled(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	tr.TrainPlan.Duration = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Train(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if s.Scratch().Trained {
		t.Fatal("cancelled training marked trained")
	}
}

func TestPredictValidationOrder(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	ctx := context.Background()

	if _, err := tr.Predict(ctx, PredictRequest{}); !errors.Is(err, ErrNoTarget) {
		t.Fatalf("no target: %v", err)
	}
	s.SetTargetColumn("likes")
	if _, err := tr.Predict(ctx, PredictRequest{}); !errors.Is(err, ErrNotTrained) {
		t.Fatalf("not trained: %v", err)
	}
	if _, err := tr.Train(ctx, nil); err != nil {
		t.Fatal(err)
	}
	_, err := tr.Predict(ctx, PredictRequest{Values: map[string]string{"shares": "3", "reach": " "}})
	var mf *MissingFeaturesError
	if !errors.As(err, &mf) {
		t.Fatalf("missing features: %v", err)
	}
	if want := "please fill values for: reach, platform, views"; mf.Error() != want {
		t.Fatalf("message = %q", mf.Error())
	}
	if s.Scratch().Prediction != nil {
		t.Fatal("failed validation stored a prediction")
	}
}

func TestPredictRegressionAndClassification(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	ctx := context.Background()
	s.SetTargetColumn("likes")
	if _, err := tr.Train(ctx, nil); err != nil {
		t.Fatal(err)
	}
	vals := map[string]string{"shares": "3", "reach": "300", "platform": "x", "views": "7"}
	p, err := tr.Predict(ctx, PredictRequest{Values: vals})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	f, perr := strconv.ParseFloat(p.Value, 64)
	if perr != nil || f < 0 || f >= 1000 {
		t.Fatalf("regression value = %q", p.Value)
	}
	if p.Confidence < 70 || p.Confidence > 99 {
		t.Fatalf("confidence = %d", p.Confidence)
	}
	if p.Algorithm != "LightGBM Regression" || p.Target != "likes" {
		t.Fatalf("prediction = %+v", p)
	}
	if got := s.Scratch().Prediction; got == nil || got.Value != p.Value {
		t.Fatalf("stored prediction = %+v", got)
	}

	s.SetModelType(dataset.Classification)
	p, err = tr.Predict(ctx, PredictRequest{Columns: []string{"likes", "views"}, Values: map[string]string{"views": "1"}})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range Classes {
		found = found || c == p.Value
	}
	if !found {
		t.Fatalf("class = %q", p.Value)
	}
}

type fakeRemote struct {
	trained  string
	features map[string]string
	err      error
}

func (f *fakeRemote) Train(_ context.Context, ds dataset.Dataset, target string, mt dataset.ModelType) (RemoteModel, error) {
	if f.err != nil {
		return RemoteModel{}, f.err
	}
	f.trained = target + "/" + string(mt)
	return RemoteModel{ID: "remote-1", Metrics: map[string]float64{"rmse": 1.5}}, nil
}

func (f *fakeRemote) Predict(_ context.Context, modelID string, features map[string]string) (string, error) {
	f.features = features
	return "42.0", nil
}

func TestRemoteTrainingAndPrediction(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	rem := &fakeRemote{}
	tr.Remote = rem
	s.SetTargetColumn("reach")
	res, err := tr.Train(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if rem.trained != "reach/regression" || res.Run.ModelID != "remote-1" || res.Metrics["rmse"] != 1.5 {
		t.Fatalf("remote train: %q %+v", rem.trained, res)
	}
	p, err := tr.Predict(context.Background(), PredictRequest{Columns: []string{"reach", "likes"}, Values: map[string]string{"likes": "9"}})
	if err != nil {
		t.Fatal(err)
	}
	if p.Value != "42.0" || rem.features["likes"] != "9" {
		t.Fatalf("remote predict: %+v %v", p, rem.features)
	}
}

func TestRemoteTrainingError(t *testing.T) {
	s := loaded()
	tr := fastTrainer(s)
	boom := errors.New("backend down")
	tr.Remote = &fakeRemote{err: boom}
	if _, err := tr.Train(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if s.Scratch().Trained {
		t.Fatal("failed remote training marked trained")
	}
}

func TestLookupAlgorithm(t *testing.T) {
	for in, want := range map[string]string{"LightGBM": "LightGBM", "classification": "CatBoost", " catboost ": "CatBoost"} {
		a, ok := LookupAlgorithm(in)
		if !ok || a.Name != want {
			t.Errorf("LookupAlgorithm(%q) = %v %v", in, a.Name, ok)
		}
	}
	if _, ok := LookupAlgorithm("xgboost"); ok {
		t.Error("unknown algorithm resolved")
	}
}
