package model

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

func linear() dataset.Dataset {
	ds := dataset.Dataset{Headers: []string{"shares", "likes"}}
	for x := 1; x <= 10; x++ {
		ds.Rows = append(ds.Rows, dataset.Record{
			"shares": strconv.Itoa(x),
			"likes":  strconv.Itoa(2*x + 1),
		})
	}
	ds.Rows = append(ds.Rows, dataset.Record{"shares": "11", "likes": ""})
	return ds
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestRegressionRecoversLine(t *testing.T) {
	m, err := Train(linear(), "likes", dataset.Regression)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if !near(m.Params.Coef[0], 1) || !near(m.Params.Coef[1], 2) {
		t.Fatalf("coef = %v", m.Params.Coef)
	}
	if m.Metrics["rmse"] != 0 || m.Metrics["r2"] != 1 {
		t.Fatalf("metrics = %v", m.Metrics)
	}
	got := m.Predict([]map[string]any{{"shares": 20.0}, {"shares": "20"}, {}})
	if !near(got[0].(float64), 41) || !near(got[1].(float64), 41) || !near(got[2].(float64), 1) {
		t.Fatalf("predictions = %v", got)
	}
}

func TestRegressionOneHot(t *testing.T) {
	ds := dataset.Dataset{Headers: []string{"platform", "reach"}}
	for i := 0; i < 10; i++ {
		p, y := "a", "10"
		if i%2 == 1 {
			p, y = "b", "20"
		}
		ds.Rows = append(ds.Rows, dataset.Record{"platform": p, "reach": y})
	}
	m, err := Train(ds, "reach", dataset.Regression)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"platform_a", "platform_b"}; len(m.FeatureColumns()) != 2 || m.FeatureColumns()[0] != want[0] || m.FeatureColumns()[1] != want[1] {
		t.Fatalf("features = %v", m.FeatureColumns())
	}
	got := m.Predict([]map[string]any{{"platform": "a"}, {"platform": "b"}, {"platform_b": 1.0}, {"platform": "zzz"}})
	if !near(got[0].(float64), 10) || !near(got[1].(float64), 20) || !near(got[2].(float64), 20) {
		t.Fatalf("predictions = %v", got)
	}
	if !near(got[3].(float64), m.Params.Coef[0]) {
		t.Fatalf("unknown category should score the intercept: %v", got[3])
	}
}

func clusters() dataset.Dataset {
	ds := dataset.Dataset{Headers: []string{"views", "tier"}}
	for i, v := range []string{"1", "2", "1.5", "0.5", "1.2", "10", "11", "9", "10.5", "9.5"} {
		tier := "low"
		if i >= 5 {
			tier = "high"
		}
		ds.Rows = append(ds.Rows, dataset.Record{"views": v, "tier": tier})
	}
	return ds
}

func TestClassificationNearestCentroid(t *testing.T) {
	m, err := Train(clusters(), "tier", dataset.Classification)
	if err != nil {
		t.Fatal(err)
	}
	if m.Metrics["accuracy"] != 1 || m.Metrics["f1_score"] != 1 {
		t.Fatalf("metrics = %v", m.Metrics)
	}
	if len(m.Params.Classes) != 2 || m.Params.Classes[0] != "high" {
		t.Fatalf("classes = %v", m.Params.Classes)
	}
	got := m.Predict([]map[string]any{{"views": 9.0}, {"views": "0.8"}})
	if got[0] != "high" || got[1] != "low" {
		t.Fatalf("predictions = %v", got)
	}
}

func TestTrainErrors(t *testing.T) {
	if _, err := Train(linear(), "likes", dataset.ModelType("ranking")); !errors.Is(err, ErrProblemType) {
		t.Errorf("problem type: %v", err)
	}
	if _, err := Train(linear(), "nope", dataset.Regression); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("target: %v", err)
	}
	one := dataset.Dataset{Headers: []string{"a", "b"}, Rows: []dataset.Record{{"a": "1", "b": "2"}, {"a": "2", "b": "NaN"}}}
	if _, err := Train(one, "b", dataset.Regression); !errors.Is(err, ErrTooFewRows) {
		t.Errorf("rows: %v", err)
	}
	if _, err := Train(clusters(), "tier", dataset.Regression); !errors.Is(err, ErrTargetNotNumber) {
		t.Errorf("numeric target: %v", err)
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	tr1, te1 := split(10)
	tr2, te2 := split(10)
	if len(te1) != 2 || len(tr1) != 8 {
		t.Fatalf("sizes = %d/%d", len(tr1), len(te1))
	}
	for i := range te1 {
		if te1[i] != te2[i] {
			t.Fatal("held-out rows differ between runs")
		}
	}
	for i := range tr1 {
		if tr1[i] != tr2[i] {
			t.Fatal("training rows differ between runs")
		}
	}
	if _, te := split(11); len(te) != 3 {
		t.Fatalf("ceil(2.2) held out = %d", len(te))
	}
}

func TestWeightedF1(t *testing.T) {
	got := weightedF1([]string{"a", "a", "b"}, []string{"a", "b", "b"})
	if !near(got, 2.0/3.0) {
		t.Fatalf("f1 = %v", got)
	}
	if weightedF1([]string{"a"}, []string{"b"}) != 0 {
		t.Fatal("no hits should score 0")
	}
}

func TestModelSurvivesJSON(t *testing.T) {
	m, err := Train(clusters(), "tier", dataset.Classification)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var back Model
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.Predict([]map[string]any{{"views": 12.0}}); got[0] != "high" {
		t.Fatalf("restored prediction = %v", got)
	}
}
