package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/backend"
	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	cfgpkg "github.com/KaramelBytes/socialhub-cli/internal/config"
	"github.com/KaramelBytes/socialhub-cli/internal/console"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/ml"
	"github.com/KaramelBytes/socialhub-cli/internal/session"
)

var (
	shellLoad       string
	shellRemote     bool
	shellProvider   string
	shellOllamaHost string
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive analytics shell",
	Example: `  socialhub shell --load posts.csv
  socialhub shell --remote   # train and predict through backend_url`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := currentConfig()
		if err != nil {
			return err
		}
		store := dataset.NewStore()
		trainer := ml.NewTrainer(store, log)
		if shellRemote {
			client, err := newBackendClient(c)
			if err != nil {
				return err
			}
			trainer.Remote = &backend.Remote{Client: client}
		}
		con := console.New(console.Options{
			Store:   store,
			Trainer: trainer,
			Chat:    newChatService(cmd, c, store, runtimeOptions{ProviderFlag: shellProvider, OllamaHost: shellOllamaHost}),
			Session: session.NewManager(session.NewFileKV(c.SessionFile)),
			Out:     cmd.OutOrStdout(),
			Logger:  log,
		})
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if shellLoad != "" {
			con.Exec(ctx, "load "+strconv.Quote(shellLoad))
		}
		if err := con.Run(ctx, cmd.InOrStdin()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// newChatService builds the chat service. A provider that cannot be built
// leaves the runtime nil, so chat commands report the credential notice.
func newChatService(cmd *cobra.Command, c *cfgpkg.Global, store *dataset.Store, opts runtimeOptions) *chat.Service {
	rt, name, err := buildRuntime(c, opts)
	if err != nil {
		log.Warn("chat runtime unavailable", zap.Error(err))
		cmd.PrintErrf("⚠ Warning: %v\n", err)
	}
	return chat.New(store, rt, chat.Options{
		APIKey:      c.APIKey,
		Model:       c.Model,
		KeyOptional: keyOptional(name),
		Logger:      log,
	})
}

func newBackendClient(c *cfgpkg.Global) (*backend.Client, error) {
	rc := retryConfig(c)
	return backend.New(c.BackendURL, backend.Options{
		HTTPTimeout: rc.HTTPTimeout,
		RetryMax:    rc.RetryMax,
		BaseDelay:   rc.BaseDelay,
		MaxDelay:    rc.MaxDelay,
		Logger:      log,
	})
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&shellLoad, "load", "", "CSV file to load on start")
	shellCmd.Flags().BoolVar(&shellRemote, "remote", false, "train and predict through the analytics backend (backend_url)")
	shellCmd.Flags().StringVar(&shellProvider, "provider", "", "chat provider: groq, openrouter, ollama (overrides config)")
	shellCmd.Flags().StringVar(&shellOllamaHost, "ollama-host", "", "override Ollama host (e.g., http://127.0.0.1:11434)")
}
