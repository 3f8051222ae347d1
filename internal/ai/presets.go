package ai

func entry(name string, ctx int, in, out float64) ModelInfo {
	return ModelInfo{Name: name, ContextTokens: ctx, InputPerK: in, OutputPerK: out}
}

func catalogOf(entries ...ModelInfo) map[string]ModelInfo {
	m := make(map[string]ModelInfo, len(entries))
	for _, e := range entries {
		m[e.Name] = e
	}
	return m
}

// PresetCatalog returns a built-in curated catalog for a known provider.
// The catalog can be merged or used to replace the in-memory catalog.
func PresetCatalog(provider string) (map[string]ModelInfo, bool) {
	switch provider {
	case ProviderGroq, "":
		return catalogOf(
			entry(DefaultModel, 32768, 0.00024, 0.00024),
			entry("llama3-8b-8192", 8192, 0.00005, 0.00008),
			entry("llama3-70b-8192", 8192, 0.00059, 0.00079),
			entry("llama-3.1-8b-instant", 131072, 0.00005, 0.00008),
			entry("llama-3.1-70b-versatile", 131072, 0.00059, 0.00079),
			entry("gemma2-9b-it", 8192, 0.0002, 0.0002),
		), true
	case ProviderOpenRouter:
		return catalogOf(
			entry("mistralai/mixtral-8x7b-instruct", 32768, 0.00024, 0.00024),
			entry("meta-llama/llama-3.1-8b-instruct", 131072, 0, 0),
			entry("meta-llama/llama-3.1-70b-instruct", 131072, 0, 0),
			entry("openai/gpt-4o-mini", 128000, 0.0006, 0.0024),
		), true
	case ProviderOllama, ProviderLocal:
		return catalogOf(
			entry("mixtral:8x7b", 32768, 0, 0),
			entry("llama3:latest", 8192, 0, 0),
			entry("llama3.1:8b-instruct", 8192, 0, 0),
			entry("mistral:7b-instruct", 8192, 0, 0),
		), true
	}
	return nil, false
}

// RecommendModel suggests a model for a provider and tier
// (cheap, balanced, high-context).
func RecommendModel(provider, tier string) (string, bool) {
	type key struct{ p, t string }
	picks := map[key]string{
		{ProviderGroq, "cheap"}:              "llama3-8b-8192",
		{ProviderGroq, "balanced"}:           DefaultModel,
		{ProviderGroq, "high-context"}:       "llama-3.1-70b-versatile",
		{ProviderOpenRouter, "cheap"}:        "meta-llama/llama-3.1-8b-instruct",
		{ProviderOpenRouter, "balanced"}:     "mistralai/mixtral-8x7b-instruct",
		{ProviderOpenRouter, "high-context"}: "meta-llama/llama-3.1-70b-instruct",
		{ProviderOllama, "cheap"}:            "llama3:latest",
		{ProviderOllama, "balanced"}:         "mixtral:8x7b",
		{ProviderOllama, "high-context"}:     "mixtral:8x7b",
	}
	if provider == "" {
		provider = ProviderGroq
	}
	if provider == ProviderLocal {
		provider = ProviderOllama
	}
	name, ok := picks[key{provider, tier}]
	return name, ok
}
