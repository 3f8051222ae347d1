package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/socialhub-cli/internal/ai"
	"github.com/KaramelBytes/socialhub-cli/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or update the model catalog used for context windows and pricing",
	Example: `  socialhub models show
  socialhub models recommend --provider groq --tier high-context
  socialhub models sync --file ./models.json --merge
  socialhub models fetch --provider openrouter --output models.json`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		keys := make([]string, 0, len(cat))
		for k := range cat {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		m := make(map[string]ai.ModelInfo, len(keys))
		for _, k := range keys {
			m[k] = cat[k]
		}
		return enc.Encode(m)
	},
}

var (
	recProvider string
	recTier     string
)

var modelsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a model for a provider and cost tier (cheap, balanced, high-context)",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, ok := ai.RecommendModel(recProvider, recTier)
		if !ok {
			return fmt.Errorf("no recommendation for provider=%q tier=%q", recProvider, recTier)
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

var (
	syncPath  string
	syncMerge bool
)

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load model catalog/pricing from a JSON file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFromJSON(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		if syncMerge {
			ai.MergeCatalog(m)
			fmt.Fprintln(cmd.OutOrStdout(), "Merged model catalog from file")
		} else {
			ai.OverrideCatalog(m)
			fmt.Fprintln(cmd.OutOrStdout(), "Replaced model catalog from file")
		}
		return nil
	},
}

// providerURL returns a catalog URL override such as
// SOCIALHUB_GROQ_CATALOG_URL, or "" when unset.
func providerURL(name string) string {
	return os.Getenv("SOCIALHUB_" + strings.ToUpper(name) + "_CATALOG_URL")
}

var (
	fetchURL      string
	fetchOutput   string
	fetchMerge    bool
	fetchProvider string
)

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch model catalog/pricing JSON from a URL (or a built-in preset) and apply it",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if fetchURL == "" && fetchProvider != "" {
			fetchURL = providerURL(fetchProvider)
		}
		var (
			m      map[string]ai.ModelInfo
			source string
		)
		switch {
		case fetchURL != "":
			var err error
			if m, err = fetchCatalog(fetchURL); err != nil {
				return err
			}
			source = "fetched catalog"
		case fetchProvider != "":
			preset, ok := ai.PresetCatalog(fetchProvider)
			if !ok {
				return fmt.Errorf("no preset for provider %q", fetchProvider)
			}
			m, source = preset, fmt.Sprintf("built-in '%s' preset", fetchProvider)
		default:
			return fmt.Errorf("--url is required (or specify --provider with a known preset)")
		}
		if fetchOutput != "" {
			data, err := utils.PrettyJSON(m)
			if err != nil {
				return fmt.Errorf("marshal: %w", err)
			}
			if err := utils.SafeWriteFile(fetchOutput, data, 0o644); err != nil {
				return fmt.Errorf("write file: %w", err)
			}
			fmt.Fprintf(out, "Saved catalog to %s\n", fetchOutput)
		}
		if fetchMerge {
			ai.MergeCatalog(m)
			fmt.Fprintf(out, "Merged %s into in-memory catalog\n", source)
		} else {
			ai.OverrideCatalog(m)
			fmt.Fprintf(out, "Replaced in-memory catalog with %s\n", source)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsRecommendCmd)
	modelsCmd.AddCommand(modelsSyncCmd)
	modelsCmd.AddCommand(modelsFetchCmd)

	modelsRecommendCmd.Flags().StringVar(&recProvider, "provider", "groq", "provider: groq, openrouter, ollama")
	modelsRecommendCmd.Flags().StringVar(&recTier, "tier", "balanced", "tier: cheap, balanced, high-context")

	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to JSON catalog file")
	modelsSyncCmd.Flags().BoolVar(&syncMerge, "merge", false, "merge into existing catalog instead of replacing")

	modelsFetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to JSON catalog file")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "optional path to save the catalog JSON")
	modelsFetchCmd.Flags().BoolVar(&fetchMerge, "merge", false, "merge into existing catalog instead of replacing")
	modelsFetchCmd.Flags().StringVar(&fetchProvider, "provider", "", "provider preset (groq, openrouter, ollama) when --url is not set")
}
