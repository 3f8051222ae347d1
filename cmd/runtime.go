package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/socialhub-cli/internal/config"
)

type runtimeOptions struct {
	ProviderFlag string
	OllamaHost   string
}

// retryConfig converts the config's HTTP/retry knobs into durations.
func retryConfig(cfg *cfgpkg.Global) ai.RuntimeConfig {
	rc := ai.RuntimeConfig{
		HTTPTimeout: 60 * time.Second,
		RetryMax:    3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
	if cfg == nil {
		return rc
	}
	if cfg.HTTPTimeoutSec > 0 {
		rc.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
	}
	if cfg.RetryMaxAttempts > 0 {
		rc.RetryMax = cfg.RetryMaxAttempts
	}
	if cfg.RetryBaseDelayMs > 0 {
		rc.BaseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
	}
	if cfg.RetryMaxDelayMs > 0 {
		rc.MaxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
	}
	return rc
}

// providerName resolves the flag, then the config, then groq.
func providerName(cfg *cfgpkg.Global, flag string) string {
	name := strings.ToLower(strings.TrimSpace(flag))
	if name == "" && cfg != nil {
		name = strings.ToLower(strings.TrimSpace(cfg.Provider))
	}
	switch name {
	case "":
		return ai.ProviderGroq
	case ai.ProviderLocal:
		return ai.ProviderOllama
	}
	return name
}

// keyOptional reports whether the provider runs without an API key.
func keyOptional(provider string) bool { return provider == ai.ProviderOllama }

func buildRuntime(cfg *cfgpkg.Global, opts runtimeOptions) (ai.Runtime, string, error) {
	name := providerName(cfg, opts.ProviderFlag)
	rc := retryConfig(cfg)
	if cfg != nil {
		rc.APIKey = cfg.APIKey
		rc.BaseURL = cfg.BaseURL
	}

	if name == ai.ProviderOllama {
		host := strings.TrimSpace(opts.OllamaHost)
		if host == "" && cfg != nil {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = ai.DefaultOllamaHost
		}
		rc.Host = host
		rc.BaseURL = ""
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(name, rc)
	if !ok {
		return nil, name, fmt.Errorf("provider not supported: %s (use one of %s)", name, strings.Join(ai.Providers(), ", "))
	}
	return client, name, nil
}

// explainError turns runtime failures into actionable messages.
func explainError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (config 'ollama_host'): %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: set GROQ_API_KEY or run 'socialhub config set api_key <key>': %w", err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model: %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). Check 'socialhub models show': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller dataset preview or fewer max tokens: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return fmt.Errorf("generation failed: %w", err)
	}
}

type streamingOptions struct {
	Enabled     bool
	Writer      io.Writer
	DeltaWriter io.Writer
}

// handleStreaming streams req when enabled and supported. It reports whether
// the request was handled.
func handleStreaming(ctx context.Context, runtime ai.Runtime, req ai.GenerateRequest, opts streamingOptions) (bool, error) {
	if !opts.Enabled {
		return false, nil
	}
	logWriter := opts.Writer
	if logWriter == nil {
		logWriter = os.Stdout
	}
	deltaWriter := opts.DeltaWriter
	if deltaWriter == nil {
		deltaWriter = os.Stdout
	}
	sr, ok := runtime.(ai.StreamRuntime)
	if !ok {
		fmt.Fprintln(logWriter, "⚠ Streaming not supported for this provider; falling back to non-streaming.")
		return false, nil
	}
	if err := sr.GenerateStream(ctx, req, func(delta string) {
		fmt.Fprint(deltaWriter, delta)
	}); err != nil {
		return true, fmt.Errorf("streaming generation failed: %w", err)
	}
	fmt.Fprintln(logWriter)
	return true, nil
}
