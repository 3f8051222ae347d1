package ai

import "testing"

func TestPresetCatalogGroq(t *testing.T) {
	m, ok := PresetCatalog(ProviderGroq)
	if !ok || len(m) == 0 {
		t.Fatalf("expected groq preset to be available")
	}
	if mi, exists := m[DefaultModel]; !exists || mi.ContextTokens != 32768 {
		t.Fatalf("expected %s with a 32k window, got %+v", DefaultModel, mi)
	}
	if _, ok := PresetCatalog("anthropic"); ok {
		t.Fatalf("unexpected preset for unknown provider")
	}
}

func TestRecommendModel(t *testing.T) {
	cases := []struct{ provider, tier, want string }{
		{"", "balanced", DefaultModel},
		{ProviderGroq, "cheap", "llama3-8b-8192"},
		{ProviderGroq, "high-context", "llama-3.1-70b-versatile"},
		{ProviderLocal, "cheap", "llama3:latest"},
		{ProviderOpenRouter, "balanced", "mistralai/mixtral-8x7b-instruct"},
	}
	for _, tc := range cases {
		if name, ok := RecommendModel(tc.provider, tc.tier); !ok || name != tc.want {
			t.Errorf("RecommendModel(%q,%q) = %q, want %q", tc.provider, tc.tier, name, tc.want)
		}
	}
	if _, ok := RecommendModel("", "unknown"); ok {
		t.Fatalf("expected unknown tier to be false")
	}
}

func TestContextWindowAndCost(t *testing.T) {
	if got := ContextWindow(DefaultModel, 4096); got != 32768 {
		t.Fatalf("context = %d", got)
	}
	if got := ContextWindow("no-such-model", 4096); got != 4096 {
		t.Fatalf("fallback = %d", got)
	}
	if _, ok := EstimateCostUSD("no-such-model", 10, 10); ok {
		t.Fatalf("unknown model should not be priced")
	}
	if c, ok := EstimateCostUSD(DefaultModel, 1000, 1000); !ok || c <= 0 {
		t.Fatalf("cost = %v %v", c, ok)
	}
}

func TestRuntimeRegistry(t *testing.T) {
	for _, p := range []string{ProviderGroq, ProviderOpenRouter, ProviderOllama, ProviderLocal} {
		rt, ok := GetRuntime(p, RuntimeConfig{APIKey: "k"})
		if !ok || rt == nil {
			t.Fatalf("provider %s not registered", p)
		}
	}
	rt, _ := GetRuntime(ProviderOpenRouter, RuntimeConfig{APIKey: "k"})
	if c, ok := rt.(*Client); !ok || c.BaseURL() != OpenRouterBaseURL {
		t.Fatalf("openrouter runtime = %#v", rt)
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unknown provider resolved")
	}
}
