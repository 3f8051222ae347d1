package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/analysis"
	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/ingest"
	"github.com/KaramelBytes/socialhub-cli/internal/model"
	"github.com/KaramelBytes/socialhub-cli/internal/registry"
)

// Upload accepts these extensions; legacy .xls is refused.
var allowedExtensions = map[string]bool{".csv": true, ".xlsx": true}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// datasetView is the wire form of a registry dataset.
type datasetView struct {
	ID          string    `json:"id"`
	File        string    `json:"file"`
	CleanedFile *string   `json:"cleaned_file"`
	UploadedAt  time.Time `json:"uploaded_at"`
	IsCleaned   bool      `json:"is_cleaned"`
	Rows        int       `json:"rows"`
	Headers     []string  `json:"headers"`
}

func viewOf(d *registry.Dataset) datasetView {
	v := datasetView{
		ID:         d.ID,
		File:       d.Name,
		UploadedAt: d.UploadedAt,
		IsCleaned:  d.IsCleaned(),
		Rows:       d.Working().Len(),
		Headers:    d.Working().Headers,
	}
	if d.IsCleaned() {
		name := "cleaned_" + d.Name
		v.CleanedFile = &name
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided.")
		return
	}
	defer file.Close()
	if !allowedExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		writeError(w, http.StatusBadRequest, "Unsupported file type.")
		return
	}
	t, err := ingest.IngestUpload(header.Filename, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Error parsing file: %v", err))
		return
	}
	d, err := s.opts.Repo.CreateDataset(r.Context(), t.Name, t.Dataset())
	if err != nil {
		s.internal(w, "store dataset", err)
		return
	}
	s.log.Info("dataset uploaded", zap.String("id", d.ID), zap.Int("rows", len(t.Rows)), zap.Int("skipped", t.Skipped))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "File uploaded successfully.",
		"dataset": viewOf(d),
	})
}

func (s *Server) internal(w http.ResponseWriter, what string, err error) {
	s.log.Error(what, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error.")
}

// lookupDataset writes the error response itself and returns nil on failure.
func (s *Server) lookupDataset(w http.ResponseWriter, r *http.Request, id string) *registry.Dataset {
	d, err := s.opts.Repo.GetDataset(r.Context(), id)
	if errors.Is(err, registry.ErrDatasetNotFound) {
		writeError(w, http.StatusBadRequest, "Dataset not found.")
		return nil
	}
	if err != nil {
		s.internal(w, "load dataset", err)
		return nil
	}
	return d
}

func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d := s.lookupDataset(w, r, id)
	if d == nil {
		return
	}
	cleaned, summary := analysis.Clean(d.Raw)
	if err := s.opts.Repo.SaveCleaned(r.Context(), id, cleaned); err != nil {
		s.internal(w, "save cleaned", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Dataset cleaned successfully.",
		"summary":      summary,
		"dataset_id":   id,
		"cleaned_file": "cleaned_" + d.Name,
	})
}

func (s *Server) handleEDA(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d := s.lookupDataset(w, r, id)
	if d == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "EDA generated successfully.",
		"dataset_id": id,
		"eda":        analysis.ComputeEDA(d.Working()),
	})
}

type trainRequest struct {
	DatasetID   string `json:"dataset_id"`
	Target      string `json:"target_column"`
	ProblemType string `json:"problem_type"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if err := decodeBody(r, &req); err != nil || req.DatasetID == "" || req.Target == "" || req.ProblemType == "" {
		writeError(w, http.StatusBadRequest, "dataset_id, target_column, and problem_type are required.")
		return
	}
	d := s.lookupDataset(w, r, req.DatasetID)
	if d == nil {
		return
	}
	fitted, err := model.Train(d.Working(), req.Target, dataset.ModelType(strings.ToLower(req.ProblemType)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics := make(map[string]any, len(fitted.Metrics)+1)
	for k, v := range fitted.Metrics {
		metrics[k] = v
	}
	metrics["feature_columns"] = fitted.FeatureColumns()
	rec, err := s.opts.Repo.CreateModel(r.Context(), d.ID, fitted, metrics)
	if err != nil {
		s.internal(w, "store model", err)
		return
	}
	s.log.Info("model trained", zap.String("id", rec.ID), zap.String("dataset", d.ID), zap.String("type", string(rec.Kind)))
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Model trained successfully.",
		"model":   rec,
	})
}

type predictRequest struct {
	ModelID  string          `json:"model_id"`
	Features json.RawMessage `json:"features"`
}

// featureRows accepts one object or a list of objects.
func featureRows(raw json.RawMessage) ([]map[string]any, error) {
	dec := func(v any) error {
		d := json.NewDecoder(bytes.NewReader(raw))
		d.UseNumber()
		return d.Decode(v)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []map[string]any
		if err := dec(&many); err != nil {
			return nil, err
		}
		return many, nil
	}
	var one map[string]any
	if err := dec(&one); err != nil {
		return nil, err
	}
	if one == nil {
		return nil, errors.New("features is null")
	}
	return []map[string]any{one}, nil
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeBody(r, &req); err != nil || req.ModelID == "" || len(req.Features) == 0 || string(req.Features) == "null" {
		writeError(w, http.StatusBadRequest, "model_id and features are required.")
		return
	}
	rows, err := featureRows(req.Features)
	if err != nil {
		writeError(w, http.StatusBadRequest, "features must be an object or a list of objects.")
		return
	}
	rec, err := s.opts.Repo.GetModel(r.Context(), req.ModelID)
	if errors.Is(err, registry.ErrModelNotFound) {
		writeError(w, http.StatusBadRequest, "Model not found.")
		return
	}
	if err != nil {
		s.internal(w, "load model", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Prediction generated successfully.",
		"model_id":    rec.ID,
		"predictions": rec.Fitted.Predict(rows),
	})
}

type chatRequest struct {
	Messages    []dataset.Message `json:"messages"`
	DataContext *chat.DataContext `json:"data_context"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.opts.Chat == nil || (!s.opts.KeyOptional && s.opts.ChatKey == "") {
		writeError(w, http.StatusBadRequest, chat.ErrMissingAPIKey.Error())
		return
	}
	var req chatRequest
	if err := decodeBody(r, &req); err != nil || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required.")
		return
	}
	resp, err := s.opts.Chat.Generate(r.Context(), chat.BuildRequest(s.opts.ChatModel, req.DataContext, req.Messages))
	if err != nil {
		s.log.Warn("chat relay failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	reply := resp.Text()
	if reply == "" {
		reply = chat.EmptyReply
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
