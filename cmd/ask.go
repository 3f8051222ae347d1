package cmd

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/ingest"
	"github.com/KaramelBytes/socialhub-cli/internal/utils"
)

var (
	askStream     bool
	askDryRun     bool
	askProvider   string
	askModel      string
	askOllamaHost string
	askTimeoutSec int
)

var askCmd = &cobra.Command{
	Use:   "ask <file.csv> <question...>",
	Short: "Ask the data assistant a question about a CSV export",
	Example: `  socialhub ask posts.csv "Which platform drives the most engagement?"
  socialhub ask posts.csv "Summarize the trends" --stream
  socialhub ask posts.csv "What stands out?" --dry-run`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		if question == "" {
			return chat.ErrEmptyMessage
		}
		t, err := ingest.IngestFile(args[0])
		if err != nil {
			return fmt.Errorf("load %s: %w", args[0], err)
		}
		model := c.Model
		if askModel != "" {
			model = askModel
		}
		out := cmd.OutOrStdout()
		store := dataset.NewStore()
		store.LoadDataset(t.Rows, t.Headers)

		userMsg := dataset.Message{Role: dataset.RoleUser, Content: question}
		req := chat.BuildRequest(model, chat.ContextFrom(t.Dataset()), []dataset.Message{userMsg})
		if askDryRun {
			printBreakdown(cmd, model, req)
			sum := sha1.Sum([]byte(req.Messages[0].Content + question))
			fmt.Fprintln(out, "\n--dry-run: no API call will be made. Prompt preview below --")
			fmt.Fprintf(out, "Request ID (dry-run): sim_%x\n", sum[:6])
			fmt.Fprintln(out, req.Messages[0].Content)
			return nil
		}

		opts := runtimeOptions{ProviderFlag: askProvider, OllamaHost: askOllamaHost}
		timeout := time.Duration(askTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 180 * time.Second
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if askStream {
			rt, name, err := buildRuntime(c, opts)
			if err != nil {
				return err
			}
			if !keyOptional(name) && strings.TrimSpace(c.APIKey) == "" {
				return chat.ErrMissingAPIKey
			}
			handled, err := handleStreaming(ctx, rt, req, streamingOptions{Enabled: true, Writer: cmd.ErrOrStderr(), DeltaWriter: out})
			if err != nil {
				return explainError(err, name, model)
			}
			if handled {
				return nil
			}
		}

		cfgCopy := *c
		cfgCopy.Model = model
		svc := newChatService(cmd, &cfgCopy, store, opts)
		reply, err := svc.Send(ctx, question)
		if err != nil {
			if errors.Is(err, chat.ErrMissingAPIKey) || errors.Is(err, chat.ErrEmptyMessage) {
				return err
			}
			return explainError(err, providerName(c, askProvider), model)
		}
		fmt.Fprintln(out, reply)
		return nil
	},
}

// printBreakdown reports estimated prompt tokens per section and the
// worst-case cost when the model has pricing.
func printBreakdown(cmd *cobra.Command, model string, req ai.GenerateRequest) {
	sections := map[string]string{}
	for i, m := range req.Messages {
		sections[fmt.Sprintf("%02d_%s", i, m.Role)] = m.Content
	}
	bd := utils.TokenBreakdown(sections)
	keys := make([]string, 0, len(bd))
	total := 0
	for k, v := range bd {
		keys = append(keys, k)
		total += v
	}
	sort.Strings(keys)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model: %s (context window %d)\n", model, ai.ContextWindow(model, 0))
	fmt.Fprintln(out, "Token breakdown:")
	for _, k := range keys {
		fmt.Fprintf(out, "  %-14s %d\n", k, bd[k])
	}
	fmt.Fprintf(out, "  %-14s %d\n", "total", total)
	if cost, ok := ai.EstimateCostUSD(model, total, req.MaxTokens); ok {
		fmt.Fprintf(out, "Estimated max cost: ~$%.4f\n", cost)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the reply if the provider supports it")
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "build the prompt and print its token breakdown without calling the API")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "provider: groq, openrouter, ollama (overrides config)")
	askCmd.Flags().StringVar(&askModel, "model", "", "model name (overrides config)")
	askCmd.Flags().StringVar(&askOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
	askCmd.Flags().IntVar(&askTimeoutSec, "timeout", 180, "request timeout in seconds")
}
