package dataset

import (
	"strings"
	"sync"
	"time"
)

// HistoryLimit caps the number of training runs kept in scratch state.
const HistoryLimit = 5

// Message roles stored in the chat transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ModelType selects the simulated learning task.
type ModelType string

const (
	Regression     ModelType = "regression"
	Classification ModelType = "classification"
)

// Valid reports whether t is a known model type.
func (t ModelType) Valid() bool { return t == Regression || t == Classification }

// Message is one chat transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TrainingRun is one entry of the training history.
type TrainingRun struct {
	ModelID     string    `json:"model_id"`
	Algorithm   string    `json:"algorithm"`
	DatasetSize int       `json:"dataset_size"`
	Features    int       `json:"features"`
	Status      string    `json:"status"`
	At          time.Time `json:"timestamp"`
}

// Prediction is the last prediction result.
type Prediction struct {
	Value      string            `json:"prediction"`
	Confidence int               `json:"confidence"`
	Algorithm  string            `json:"algorithm"`
	Target     string            `json:"target"`
	Features   map[string]string `json:"features"`
	At         time.Time         `json:"timestamp"`
}

// Scratch is the transient session state that lives beside the dataset.
type Scratch struct {
	Transcript     []Message          `json:"transcript"`
	TargetColumn   string             `json:"target_column"`
	ModelType      ModelType          `json:"model_type"`
	History        []TrainingRun      `json:"training_history"`
	Prediction     *Prediction        `json:"prediction,omitempty"`
	Trained        bool               `json:"trained"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	CompletedSteps []string           `json:"completed_steps"`
}

func defaultScratch() Scratch {
	return Scratch{ModelType: Regression}
}

func (s *Scratch) clone() Scratch {
	out := *s
	out.Transcript = append([]Message(nil), s.Transcript...)
	out.History = append([]TrainingRun(nil), s.History...)
	out.CompletedSteps = append([]string(nil), s.CompletedSteps...)
	if s.Metrics != nil {
		out.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			out.Metrics[k] = v
		}
	}
	if s.Prediction != nil {
		p := *s.Prediction
		p.Features = make(map[string]string, len(s.Prediction.Features))
		for k, v := range s.Prediction.Features {
			p.Features[k] = v
		}
		out.Prediction = &p
	}
	return out
}

// Store holds the loaded dataset and its scratch state. Every mutation runs
// under one lock so readers always see a complete post-mutation state.
// The generation counter advances on LoadDataset and ResetAll; work started
// against an older generation is discarded by UpdateAt.
type Store struct {
	mu      sync.RWMutex
	data    Dataset
	scratch Scratch
	gen     uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{scratch: defaultScratch()}
}

// Generation returns the current liveness generation.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// LoadDataset replaces rows and headers wholesale.
func (s *Store) LoadDataset(rows []Record, headers []string) {
	in := Dataset{Headers: headers, Rows: rows}
	cp := in.Clone()
	s.mu.Lock()
	s.data = cp
	s.gen++
	s.mu.Unlock()
}

// ResetAll clears the dataset and every scratch field in one step.
func (s *Store) ResetAll() {
	s.mu.Lock()
	s.data = Dataset{}
	s.scratch = defaultScratch()
	s.gen++
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the dataset.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// State returns copies of the dataset and scratch together with the
// generation they belong to, read under a single lock.
func (s *Store) State() (Dataset, Scratch, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone(), s.scratch.clone(), s.gen
}

// Headers returns a copy of the header list.
func (s *Store) Headers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.data.Headers...)
}

// Len returns the number of loaded rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Rows)
}

// Scratch returns a copy of the scratch state.
func (s *Store) Scratch() Scratch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scratch.clone()
}

// RenameColumn renames a column everywhere. See Dataset.RenameColumn.
func (s *Store) RenameColumn(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.data.RenameColumn(oldName, newName); err != nil {
		return err
	}
	if nn := strings.TrimSpace(newName); s.scratch.TargetColumn == oldName && s.data.HasColumn(nn) {
		s.scratch.TargetColumn = nn
	}
	return nil
}

// ReplaceNulls fills missing cells with NullPlaceholder.
func (s *Store) ReplaceNulls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.ReplaceNulls()
}

// NormalizeNumeric min-max scales fully numeric columns.
func (s *Store) NormalizeNumeric() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.NormalizeNumeric()
}

// DropDuplicates removes repeated rows.
func (s *Store) DropDuplicates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.DropDuplicates()
}

// UpdateAt runs fn under the write lock only if gen is still current.
// It reports whether fn ran.
func (s *Store) UpdateAt(gen uint64, fn func(d *Dataset, sc *Scratch)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	fn(&s.data, &s.scratch)
	return true
}

// AppendMessage appends to the chat transcript.
func (s *Store) AppendMessage(m Message) {
	s.mu.Lock()
	s.scratch.Transcript = append(s.scratch.Transcript, m)
	s.mu.Unlock()
}

// SetTargetColumn selects the prediction target.
func (s *Store) SetTargetColumn(col string) {
	s.mu.Lock()
	s.scratch.TargetColumn = col
	s.mu.Unlock()
}

// SetModelType selects regression or classification.
func (s *Store) SetModelType(t ModelType) {
	s.mu.Lock()
	s.scratch.ModelType = t
	s.mu.Unlock()
}

// SetPrediction stores the last prediction.
func (s *Store) SetPrediction(p *Prediction) {
	s.mu.Lock()
	s.scratch.Prediction = p
	s.mu.Unlock()
}

// MarkStep records a completed preprocessing step once.
func (s *Store) MarkStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.scratch.CompletedSteps {
		if st == step {
			return
		}
	}
	s.scratch.CompletedSteps = append(s.scratch.CompletedSteps, step)
}

// ClearTraining forgets the trained model, its metrics and the last prediction.
func (s *Store) ClearTraining() {
	s.mu.Lock()
	s.scratch.Trained = false
	s.scratch.Metrics = nil
	s.scratch.Prediction = nil
	s.mu.Unlock()
}

// RecordTraining marks the model trained and pushes run onto the history,
// newest first, keeping at most HistoryLimit entries.
func (sc *Scratch) RecordTraining(run TrainingRun, metrics map[string]float64) {
	sc.Trained = true
	sc.Metrics = metrics
	h := append([]TrainingRun{run}, sc.History...)
	if len(h) > HistoryLimit {
		h = h[:HistoryLimit]
	}
	sc.History = h
}
