package ai

import (
	"encoding/json"
	"os"
)

// ModelInfo carries context size and pricing used for trimming prompts and
// for the cost hints printed by `socialhub models`. Prices are indicative.
type ModelInfo struct {
	Name          string
	ContextTokens int     // approximate context window
	InputPerK     float64 // USD per 1K input tokens
	OutputPerK    float64 // USD per 1K output tokens
}

// DefaultModel is the completion model the dashboard has always used.
const DefaultModel = "mixtral-8x7b-32768"

var models = map[string]ModelInfo{}

func init() {
	for _, p := range []string{ProviderGroq, ProviderOpenRouter, ProviderOllama} {
		m, _ := PresetCatalog(p)
		MergeCatalog(m)
	}
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// ContextWindow returns the model's context size, or fallback when unknown.
func ContextWindow(name string, fallback int) int {
	if mi, ok := LookupModel(name); ok && mi.ContextTokens > 0 {
		return mi.ContextTokens
	}
	return fallback
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFromJSON loads a JSON object map[string]ModelInfo from a file path.
// Example entry:
// { "mixtral-8x7b-32768": {"Name":"mixtral-8x7b-32768","ContextTokens":32768,"InputPerK":0.00024,"OutputPerK":0.00024} }
func LoadCatalogFromJSON(path string) (map[string]ModelInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var m map[string]ModelInfo
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// OverrideCatalog replaces the in-memory catalog entirely.
func OverrideCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	models = m
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns a shallow copy of the current model catalog.
func Catalog() map[string]ModelInfo {
	out := make(map[string]ModelInfo, len(models))
	for k, v := range models {
		out[k] = v
	}
	return out
}
