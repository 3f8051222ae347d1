// Package model fits the server-side models: least squares regression and a
// nearest-centroid classifier over one-hot encoded features.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// SplitSeed fixes the train/test shuffle.
const SplitSeed = 42

// TestFraction is the share of rows held out for metrics.
const TestFraction = 0.2

var (
	ErrTargetNotFound  = errors.New("target column not found in dataset")
	ErrProblemType     = errors.New("invalid problem type, use regression or classification")
	ErrTooFewRows      = errors.New("at least two rows with a target value are required")
	ErrTargetNotNumber = errors.New("regression target must be numeric")
)

// Params is the serialized form of a fitted model.
type Params struct {
	Kind     dataset.ModelType `json:"model_type"`
	Target   string            `json:"target_column"`
	Encoding Encoding          `json:"encoding"`
	// Coef holds the intercept followed by one weight per feature.
	Coef []float64 `json:"coefficients,omitempty"`
	// Classes, Centroids and Scale describe the classifier.
	Classes   []string    `json:"classes,omitempty"`
	Centroids [][]float64 `json:"centroids,omitempty"`
	Scale     []float64   `json:"scale,omitempty"`
}

// Model is a fitted model with its held-out metrics.
type Model struct {
	Params  Params             `json:"params"`
	Metrics map[string]float64 `json:"metrics"`
}

// FeatureColumns lists the encoded feature names.
func (m *Model) FeatureColumns() []string { return m.Params.Encoding.Features }

// Train fits a model of the given kind predicting target from every other
// column. Rows without a target value are dropped first.
func Train(ds dataset.Dataset, target string, kind dataset.ModelType) (*Model, error) {
	if !kind.Valid() {
		return nil, ErrProblemType
	}
	if !ds.HasColumn(target) {
		return nil, ErrTargetNotFound
	}
	var rows []dataset.Record
	for _, r := range ds.Rows {
		if v, ok := r[target]; ok && !missing(v) {
			rows = append(rows, r)
		}
	}
	if len(rows) < 2 {
		return nil, ErrTooFewRows
	}
	enc := fitEncoding(ds.Headers, rows, target)
	trainIdx, testIdx := split(len(rows))

	m := &Model{Params: Params{Kind: kind, Target: target, Encoding: enc}}
	switch kind {
	case dataset.Regression:
		y := make([]float64, len(rows))
		for i, r := range rows {
			f, ok := dataset.ParseNumber(strings.TrimSpace(r[target]))
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrTargetNotNumber, r[target])
			}
			y[i] = f
		}
		m.Params.Coef = leastSquares(design(enc, rows, trainIdx), pick(y, trainIdx))
		var pred, truth []float64
		for _, i := range testIdx {
			pred = append(pred, m.regress(enc.encodeRecord(rows[i])))
			truth = append(truth, y[i])
		}
		m.Metrics = map[string]float64{"rmse": round4(rmse(truth, pred)), "r2": round4(r2(truth, pred))}
	case dataset.Classification:
		labels := make([]string, len(rows))
		for i, r := range rows {
			labels[i] = strings.TrimSpace(r[target])
		}
		m.fitCentroids(enc, rows, labels, trainIdx)
		var pred, truth []string
		for _, i := range testIdx {
			pred = append(pred, m.classify(enc.encodeRecord(rows[i])))
			truth = append(truth, labels[i])
		}
		m.Metrics = map[string]float64{"accuracy": round4(accuracy(truth, pred)), "f1_score": round4(weightedF1(truth, pred))}
	}
	return m, nil
}

// Predict scores each payload. Regression yields float64 values and
// classification yields class labels.
func (m *Model) Predict(payloads []map[string]any) []any {
	out := make([]any, len(payloads))
	for i, p := range payloads {
		x := m.Params.Encoding.encodePayload(p)
		if m.Params.Kind == dataset.Classification {
			out[i] = m.classify(x)
		} else {
			out[i] = m.regress(x)
		}
	}
	return out
}

// split shuffles row indexes with a fixed seed; the first ceil(20%) are held out.
func split(n int) (train, test []int) {
	perm := rand.New(rand.NewSource(SplitSeed)).Perm(n)
	nTest := int(math.Ceil(TestFraction * float64(n)))
	return perm[nTest:], perm[:nTest]
}

func design(enc Encoding, rows []dataset.Record, idx []int) *mat.Dense {
	p := len(enc.Features) + 1
	x := mat.NewDense(len(idx), p, nil)
	for r, i := range idx {
		x.Set(r, 0, 1)
		for j, v := range enc.encodeRecord(rows[i]) {
			x.Set(r, j+1, v)
		}
	}
	return x
}

func pick(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

// leastSquares returns the minimum-norm solution of x·b ≈ y, which stays
// defined when one-hot columns are collinear with the intercept.
func leastSquares(x *mat.Dense, y []float64) []float64 {
	_, p := x.Dims()
	coef := make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		coef[0] = stat.Mean(y, nil)
		return coef
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		coef[0] = stat.Mean(y, nil)
		return coef
	}
	var b mat.Dense
	svd.SolveTo(&b, mat.NewDense(len(y), 1, y), rank)
	for i := range coef {
		coef[i] = b.At(i, 0)
	}
	return coef
}

func (m *Model) regress(x []float64) float64 {
	c := m.Params.Coef
	if len(c) == 0 {
		return 0
	}
	out := c[0]
	for i, v := range x {
		if i+1 < len(c) {
			out += c[i+1] * v
		}
	}
	return out
}

func (m *Model) fitCentroids(enc Encoding, rows []dataset.Record, labels []string, idx []int) {
	p := len(enc.Features)
	cols := make([][]float64, p)
	byClass := map[string][]int{}
	vecs := make([][]float64, len(idx))
	for k, i := range idx {
		vecs[k] = enc.encodeRecord(rows[i])
		for j := 0; j < p; j++ {
			cols[j] = append(cols[j], vecs[k][j])
		}
		byClass[labels[i]] = append(byClass[labels[i]], k)
	}
	scale := make([]float64, p)
	for j := range scale {
		scale[j] = 1
		if len(cols[j]) > 1 {
			if sd := stat.StdDev(cols[j], nil); sd > 0 {
				scale[j] = sd
			}
		}
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	centroids := make([][]float64, len(classes))
	for ci, c := range classes {
		sum := make([]float64, p)
		for _, k := range byClass[c] {
			for j := 0; j < p; j++ {
				sum[j] += vecs[k][j] / scale[j]
			}
		}
		for j := range sum {
			sum[j] /= float64(len(byClass[c]))
		}
		centroids[ci] = sum
	}
	m.Params.Classes, m.Params.Centroids, m.Params.Scale = classes, centroids, scale
}

func (m *Model) classify(x []float64) string {
	best, bestD := "", math.Inf(1)
	for ci, c := range m.Params.Centroids {
		var d float64
		for j, v := range x {
			if j >= len(c) {
				break
			}
			diff := v/m.Params.Scale[j] - c[j]
			d += diff * diff
		}
		if d < bestD {
			best, bestD = m.Params.Classes[ci], d
		}
	}
	return best
}

func rmse(truth, pred []float64) float64 {
	var s float64
	for i := range truth {
		s += (truth[i] - pred[i]) * (truth[i] - pred[i])
	}
	return math.Sqrt(s / float64(len(truth)))
}

// r2 is the coefficient of determination; a constant truth scores 1 when
// matched exactly and 0 otherwise.
func r2(truth, pred []float64) float64 {
	mean := stat.Mean(truth, nil)
	var res, tot float64
	for i := range truth {
		res += (truth[i] - pred[i]) * (truth[i] - pred[i])
		tot += (truth[i] - mean) * (truth[i] - mean)
	}
	if tot == 0 {
		if res == 0 {
			return 1
		}
		return 0
	}
	return 1 - res/tot
}

func accuracy(truth, pred []string) float64 {
	hit := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}

// weightedF1 averages per-class F1 weighted by each class's support in truth.
func weightedF1(truth, pred []string) float64 {
	support := map[string]int{}
	tp := map[string]int{}
	predicted := map[string]int{}
	for i := range truth {
		support[truth[i]]++
		predicted[pred[i]]++
		if truth[i] == pred[i] {
			tp[truth[i]]++
		}
	}
	var total float64
	for c, n := range support {
		if tp[c] == 0 {
			continue
		}
		precision := float64(tp[c]) / float64(predicted[c])
		recall := float64(tp[c]) / float64(n)
		total += float64(n) * 2 * precision * recall / (precision + recall)
	}
	return total / float64(len(truth))
}

func round4(x float64) float64 { return math.Round(x*1e4) / 1e4 }
