package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/socialhub-cli/internal/config"
	"github.com/KaramelBytes/socialhub-cli/internal/registry"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set SocialHub configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "api_key: %s\n", mask(c.APIKey))
		fmt.Fprintf(out, "provider: %s\n", c.Provider)
		fmt.Fprintf(out, "model: %s\n", c.Model)
		if c.BaseURL != "" {
			fmt.Fprintf(out, "base_url: %s\n", c.BaseURL)
		}
		fmt.Fprintf(out, "max_tokens: %d\n", c.MaxTokens)
		fmt.Fprintf(out, "temperature: %.3f\n", c.Temperature)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", c.RetryMaxAttempts)
		fmt.Fprintf(out, "ollama_host: %s\n", c.OllamaHost)
		if c.BackendURL != "" {
			fmt.Fprintf(out, "backend_url: %s\n", c.BackendURL)
		}
		fmt.Fprintf(out, "listen_addr: %s\n", c.ListenAddr)
		if c.DatabaseURL != "" {
			fmt.Fprintf(out, "database_url: %s\n", mask(c.DatabaseURL))
		}
		fmt.Fprintf(out, "database_driver: %s\n", c.DatabaseDriver)
		fmt.Fprintf(out, "rate_limit_per_min: %d\n", c.RateLimitPerMin)
		fmt.Fprintf(out, "trust_proxy: %t\n", c.TrustProxy)
		fmt.Fprintf(out, "session_file: %s\n", c.SessionFile)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := currentConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "provider":
		p := strings.ToLower(val)
		if p == ai.ProviderLocal {
			p = ai.ProviderOllama
		}
		if _, ok := ai.GetRuntime(p, ai.RuntimeConfig{}); !ok {
			return fmt.Errorf("invalid provider: %s (use groq, openrouter or ollama)", val)
		}
		c.Provider = p
	case "model":
		c.Model = val
	case "base_url":
		c.BaseURL = val
	case "max_tokens":
		c.MaxTokens, err = atoi()
	case "temperature":
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return fmt.Errorf("invalid float for temperature: %w", perr)
		}
		c.Temperature = f
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi()
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi()
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi()
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi()
	case "ollama_host":
		c.OllamaHost = val
	case "backend_url":
		c.BackendURL = val
	case "listen_addr":
		c.ListenAddr = val
	case "database_url":
		c.DatabaseURL = val
	case "database_driver":
		if val != registry.DriverPQ && val != registry.DriverPGX {
			return fmt.Errorf("invalid database_driver: %s (use %s or %s)", val, registry.DriverPQ, registry.DriverPGX)
		}
		c.DatabaseDriver = val
	case "rate_limit_per_min":
		c.RateLimitPerMin, err = atoi()
	case "trust_proxy":
		b, perr := strconv.ParseBool(val)
		if perr != nil {
			return fmt.Errorf("invalid bool for trust_proxy: %w", perr)
		}
		c.TrustProxy = b
	case "session_file":
		c.SessionFile = val
	case "log_level":
		c.LogLevel = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
